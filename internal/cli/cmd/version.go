package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("subwave %s (%s, built %s)\n", buildInfo.Version, buildInfo.Commit, buildInfo.Date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
