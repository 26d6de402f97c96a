package config

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults mirror the pipeline tuning that proved stable for
// network-backed playback: ~6s of buffered media and a 512MiB
// download ring buffer.
const (
	defaultBufferDuration    = 6 * time.Second
	defaultRingBufferMaxSize = uint64(512 * 1024 * 1024)
	defaultVolume            = 1.0
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("playback.buffer_duration", defaultBufferDuration)
	v.SetDefault("playback.ring_buffer_max_size", defaultRingBufferMaxSize)
	v.SetDefault("playback.seek_accurate", false)
	v.SetDefault("playback.volume", defaultVolume)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("force_backend", "")
}

const defaultConfigYAML = `# subwave configuration
playback:
  # Buffering target for network sources.
  buffer_duration: 6s
  # Download ring buffer cap in bytes.
  ring_buffer_max_size: 536870912
  # Frame-accurate seeking (slower).
  seek_accurate: false
  # Initial volume multiplier, 0.0 to 1.0.
  volume: 1.0

logging:
  # trace, debug, info, warn, error
  level: info
  # console or json
  format: console

# Override backend selection: "subsurface", "texture", or empty for auto.
force_backend: ""
`
