//go:build !wayland_cgo

package compositor

import (
	"fmt"

	"github.com/mvailland/subwave/host"
)

// Connect is unavailable without the wayland_cgo build tag. Callers
// receive ErrSurfaceCreation and fall back to the texture-upload
// backend.
func Connect(display host.DisplayHandle) (Conn, error) {
	return nil, fmt.Errorf("%w: built without wayland_cgo", ErrSurfaceCreation)
}
