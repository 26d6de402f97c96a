// Package cli carries the shared application context for the CLI
// commands: loaded configuration and the process logger.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mvailland/subwave/internal/config"
	"github.com/mvailland/subwave/internal/logging"
)

// BuildInfo is set from main via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// App is the initialized command context.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	BuildInfo BuildInfo
}

// NewApp loads configuration and wires the logger from it.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	if lvl, ok := logging.ParseLevel(cfg.Logging.Level); ok {
		logCfg.Level = lvl
	}
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}

	return &App{
		Config: cfg,
		Log:    logging.New(logCfg),
	}, nil
}
