// Package config provides configuration management for subwave with Viper integration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// File permission constants
const (
	dirPerm  = 0755 // Standard directory permissions (rwxr-xr-x)
	filePerm = 0644 // Standard file permissions (rw-r--r--)
)

// Config represents the complete configuration for subwave.
type Config struct {
	Playback PlaybackConfig `mapstructure:"playback" yaml:"playback"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	// ForceBackend overrides automatic backend detection.
	// Empty means auto-detect from the display environment.
	ForceBackend string `mapstructure:"force_backend" yaml:"force_backend"`
}

// PlaybackConfig holds decode graph tuning.
type PlaybackConfig struct {
	// BufferDuration is the upstream buffering target for network sources.
	BufferDuration time.Duration `mapstructure:"buffer_duration" yaml:"buffer_duration"`
	// RingBufferMaxSize caps the download ring buffer in bytes.
	RingBufferMaxSize uint64 `mapstructure:"ring_buffer_max_size" yaml:"ring_buffer_max_size"`
	// SeekAccurate trades seek speed for frame accuracy.
	SeekAccurate bool `mapstructure:"seek_accurate" yaml:"seek_accurate"`
	// Volume is the initial volume multiplier (0.0 to 1.0).
	Volume float64 `mapstructure:"volume" yaml:"volume"`
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration from the XDG config file, environment, and defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("SUBWAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing file is fine; defaults and env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteDefault writes a default config file if none exists. Used by the CLI.
func WriteDefault() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(configDir, dirPerm); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	path := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), filePerm); err != nil {
		return "", fmt.Errorf("write default config: %w", err)
	}
	return path, nil
}
