//go:build !wayland_cgo

package gtkhost

import (
	"fmt"

	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/mvailland/subwave/host"
)

func nativeHandles(widget *gtk.Widget) (host.SurfaceHandle, host.DisplayHandle, error) {
	return 0, 0, fmt.Errorf("gtkhost: built without wayland_cgo")
}
