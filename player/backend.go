package player

import "os"

// Backend selects how video reaches the screen.
type Backend string

const (
	// BackendSubsurface composites decoded frames on a wl_subsurface,
	// bypassing the toolkit scene graph.
	BackendSubsurface Backend = "subsurface"
	// BackendTexture is the fallback path through the toolkit's
	// texture upload, used when no Wayland display is reachable.
	BackendTexture Backend = "texture"
)

// DetectBackend picks the rendering path. An explicit force wins;
// otherwise the presence of a Wayland display decides.
func DetectBackend(force string) Backend {
	switch force {
	case string(BackendSubsurface):
		return BackendSubsurface
	case string(BackendTexture):
		return BackendTexture
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return BackendSubsurface
	}
	return BackendTexture
}
