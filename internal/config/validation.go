package config

import (
	"fmt"
	"time"
)

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Playback.BufferDuration < 0 || c.Playback.BufferDuration > 60*time.Second {
		return fmt.Errorf("playback.buffer_duration out of range [0, 60s]: %s", c.Playback.BufferDuration)
	}
	if c.Playback.Volume < 0 || c.Playback.Volume > 1 {
		return fmt.Errorf("playback.volume out of range [0.0, 1.0]: %g", c.Playback.Volume)
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level invalid: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format invalid: %q", c.Logging.Format)
	}
	switch c.ForceBackend {
	case "", "subsurface", "texture":
	default:
		return fmt.Errorf("force_backend invalid: %q", c.ForceBackend)
	}
	return nil
}
