//go:build !wayland_cgo

package pipeline

import (
	"fmt"

	"github.com/go-gst/go-gst/gst"

	"github.com/mvailland/subwave/host"
)

// Without the wayland_cgo build tag the overlay interface cannot be
// driven; the subsurface backend is rejected before a graph is built,
// so these only exist to keep the package compiling.
type noopOverlay struct{}

func newElementOverlay(*gst.Element) Overlay { return noopOverlay{} }

func (noopOverlay) SetWindowHandle(uintptr)               {}
func (noopOverlay) SetRenderRectangle(int, int, int, int) {}
func (noopOverlay) Expose()                               {}

func handDisplayToSink(*gst.Element, host.DisplayHandle) error {
	return fmt.Errorf("pipeline: built without wayland_cgo")
}
