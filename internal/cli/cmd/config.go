package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvailland/subwave/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration",
	RunE: func(_ *cobra.Command, _ []string) error {
		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		cfg := app.Config
		fmt.Printf("config dir:            %s\n", dir)
		fmt.Printf("force_backend:         %q\n", cfg.ForceBackend)
		fmt.Printf("playback.buffer_duration:      %s\n", cfg.Playback.BufferDuration)
		fmt.Printf("playback.ring_buffer_max_size: %d\n", cfg.Playback.RingBufferMaxSize)
		fmt.Printf("playback.seek_accurate:        %v\n", cfg.Playback.SeekAccurate)
		fmt.Printf("playback.volume:               %v\n", cfg.Playback.Volume)
		fmt.Printf("logging.level:         %s\n", cfg.Logging.Level)
		fmt.Printf("logging.format:        %s\n", cfg.Logging.Format)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file if none exists",
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := config.WriteDefault()
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configStatusCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
