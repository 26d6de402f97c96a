// Package cmd provides the Cobra CLI commands for subwave.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvailland/subwave/internal/cli"
)

var (
	app     *cli.App
	rootCmd = &cobra.Command{
		Use:   "subwave",
		Short: "Zero-copy subsurface video playback for Wayland",
		Long: `Subwave plays video on a Wayland subsurface beneath a GTK4 window,
so decoded frames go straight from the decoder to the compositor
without a copy through the toolkit scene graph.

Use 'subwave play <uri>' to open a player window, or the
subcommands for configuration management.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion", "version":
				return nil
			}
			var err error
			if app, err = cli.NewApp(); err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			app.BuildInfo = buildInfo
			return nil
		},
	}

	buildInfo cli.BuildInfo
)

// SetBuildInfo records the ldflags build metadata before Execute.
func SetBuildInfo(info cli.BuildInfo) { buildInfo = info }

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
