//go:build wayland_cgo

package gtkhost

/*
#cgo pkg-config: gtk4 gtk4-wayland
#include <gtk/gtk.h>
#include <gdk/wayland/gdkwayland.h>

static struct wl_surface* gtkhost_wl_surface(GdkSurface* s) {
	if (!GDK_IS_WAYLAND_SURFACE(s)) return NULL;
	return gdk_wayland_surface_get_wl_surface(s);
}

static struct wl_display* gtkhost_wl_display(GdkDisplay* d) {
	if (!GDK_IS_WAYLAND_DISPLAY(d)) return NULL;
	return gdk_wayland_display_get_wl_display(d);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	coreglib "github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/mvailland/subwave/host"
)

// nativeHandles digs the wl_surface and wl_display out of the
// widget's toplevel. Both live as long as the widget stays realized.
func nativeHandles(widget *gtk.Widget) (host.SurfaceHandle, host.DisplayHandle, error) {
	native := widget.Native()
	if native == nil {
		return 0, 0, fmt.Errorf("gtkhost: widget has no native ancestor")
	}
	gdkSurface := native.Surface()
	if gdkSurface == nil {
		return 0, 0, fmt.Errorf("gtkhost: toplevel has no surface")
	}

	sp := unsafe.Pointer(coreglib.InternObject(gdkSurface).Native())
	wlSurface := C.gtkhost_wl_surface((*C.GdkSurface)(sp))
	if wlSurface == nil {
		return 0, 0, fmt.Errorf("gtkhost: not a wayland surface")
	}

	display := widget.Display()
	dp := unsafe.Pointer(coreglib.InternObject(display).Native())
	wlDisplay := C.gtkhost_wl_display((*C.GdkDisplay)(dp))
	if wlDisplay == nil {
		return 0, 0, fmt.Errorf("gtkhost: not a wayland display")
	}

	return host.SurfaceHandle(uintptr(unsafe.Pointer(wlSurface))),
		host.DisplayHandle(uintptr(unsafe.Pointer(wlDisplay))), nil
}
