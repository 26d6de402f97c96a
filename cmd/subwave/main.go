package main

import (
	"github.com/mvailland/subwave/internal/cli"
	"github.com/mvailland/subwave/internal/cli/cmd"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetBuildInfo(cli.BuildInfo{Version: version, Commit: commit, Date: buildDate})
	cmd.Execute()
}
