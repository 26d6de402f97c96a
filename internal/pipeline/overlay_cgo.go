//go:build wayland_cgo

package pipeline

/*
#cgo pkg-config: gstreamer-1.0 gstreamer-video-1.0

#include <gst/gst.h>
#include <gst/video/videooverlay.h>

static void subwave_overlay_set_handle(void *el, guintptr handle) {
	gst_video_overlay_set_window_handle(GST_VIDEO_OVERLAY(el), handle);
}

static void subwave_overlay_set_rect(void *el, gint x, gint y, gint w, gint h) {
	gst_video_overlay_set_render_rectangle(GST_VIDEO_OVERLAY(el), x, y, w, h);
}

static void subwave_overlay_expose(void *el) {
	gst_video_overlay_expose(GST_VIDEO_OVERLAY(el));
}

static void subwave_sink_set_display(void *el, void *display) {
	GstContext *ctx = gst_context_new("GstWaylandDisplayHandleContextType", TRUE);
	gst_structure_set(gst_context_writable_structure(ctx),
		"display", G_TYPE_POINTER, display, NULL);
	gst_element_set_context(GST_ELEMENT(el), ctx);
	gst_context_unref(ctx);
}
*/
import "C"

import (
	"unsafe"

	"github.com/go-gst/go-gst/gst"

	"github.com/mvailland/subwave/host"
)

// elementOverlay drives the sink's GstVideoOverlay interface through
// cgo; the binding carries no wrapper for it.
type elementOverlay struct{ el *gst.Element }

func newElementOverlay(el *gst.Element) Overlay { return elementOverlay{el} }

func (o elementOverlay) SetWindowHandle(handle uintptr) {
	C.subwave_overlay_set_handle(o.el.Unsafe(), C.guintptr(handle))
}

func (o elementOverlay) SetRenderRectangle(x, y, width, height int) {
	C.subwave_overlay_set_rect(o.el.Unsafe(), C.gint(x), C.gint(y), C.gint(width), C.gint(height))
}

func (o elementOverlay) Expose() {
	C.subwave_overlay_expose(o.el.Unsafe())
}

// handDisplayToSink publishes the shared wl_display to the sink as a
// persistent GstContext. Must run before the element leaves NULL.
func handDisplayToSink(el *gst.Element, display host.DisplayHandle) error {
	C.subwave_sink_set_display(el.Unsafe(), unsafe.Pointer(uintptr(display)))
	return nil
}
