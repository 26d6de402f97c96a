package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6*time.Second, cfg.Playback.BufferDuration)
	assert.Equal(t, uint64(512*1024*1024), cfg.Playback.RingBufferMaxSize)
	assert.False(t, cfg.Playback.SeekAccurate)
	assert.Equal(t, 1.0, cfg.Playback.Volume)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Empty(t, cfg.ForceBackend)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, appName)
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	yaml := "playback:\n  buffer_duration: 2s\n  volume: 0.5\nlogging:\n  level: debug\nforce_backend: texture\n"
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Playback.BufferDuration)
	assert.Equal(t, 0.5, cfg.Playback.Volume)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "texture", cfg.ForceBackend)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"volume too high", func(c *Config) { c.Playback.Volume = 1.5 }},
		{"negative buffer", func(c *Config) { c.Playback.BufferDuration = -time.Second }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad backend", func(c *Config) { c.ForceBackend = "vulkan" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Playback: PlaybackConfig{BufferDuration: time.Second, Volume: 1.0},
				Logging:  LoggingConfig{Level: "info", Format: "console"},
			}
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteDefaultIsIdempotent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := WriteDefault()
	require.NoError(t, err)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// Second call must not clobber an existing file.
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))
	path2, err := WriteDefault()
	require.NoError(t, err)
	assert.Equal(t, path, path2)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, string(before), string(after))
	assert.Contains(t, string(after), "debug")
}
