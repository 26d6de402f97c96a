package pipeline

import (
	"sync"

	"github.com/go-gst/go-gst/gst"
	"github.com/rs/zerolog"

	"github.com/mvailland/subwave/host"
)

// Overlay is the slice of the sink's video-overlay interface the
// binder needs.
type Overlay interface {
	SetWindowHandle(handle uintptr)
	SetRenderRectangle(x, y, width, height int)
	Expose()
}

// OutputBinder owns the wayland video sink and attaches it to the
// compositor surface in two phases: the display connection is handed
// over before the graph leaves NULL, the surface handle once the
// subsurface exists. Render-rectangle updates may arrive on any
// goroutine.
type OutputBinder struct {
	log     zerolog.Logger
	sink    *gst.Element
	overlay Overlay

	mu       sync.Mutex
	attached bool
	rect     host.Geometry
}

// NewOutputBinder creates the waylandsink stage. A missing plugin is
// fatal to graph construction; the caller falls back to the texture
// path.
func NewOutputBinder(log zerolog.Logger) (*OutputBinder, error) {
	sink, err := gst.NewElement("waylandsink")
	if err != nil {
		return nil, &GraphConstructionError{Stage: "waylandsink", Err: err}
	}
	return &OutputBinder{
		log:     log.With().Str("component", "output-binder").Logger(),
		sink:    sink,
		overlay: newElementOverlay(sink),
	}, nil
}

func newOutputBinderWith(log zerolog.Logger, sink *gst.Element, overlay Overlay) *OutputBinder {
	return &OutputBinder{log: log, sink: sink, overlay: overlay}
}

// Element returns the sink element for graph assembly.
func (b *OutputBinder) Element() *gst.Element { return b.sink }

// PrepareDisplay hands our wl_display to the sink so it binds the
// shared connection instead of opening its own. Must happen before
// the sink leaves NULL.
func (b *OutputBinder) PrepareDisplay(display host.DisplayHandle) error {
	if err := handDisplayToSink(b.sink, display); err != nil {
		return &GraphConstructionError{Stage: "display-context", Err: err}
	}
	b.log.Debug().Msg("display handle handed to sink")
	return nil
}

// Attach points the sink at the video subsurface. The render
// rectangle is always set explicitly: the sink must never size
// itself from the surface.
func (b *OutputBinder) Attach(surface host.SurfaceHandle, g host.Geometry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overlay.SetWindowHandle(uintptr(surface))
	b.attached = true
	if g.Empty() {
		g = b.rect
	}
	b.applyRectLocked(g)
}

// Resize updates the render rectangle and asks the sink to redraw.
// Before Attach the rectangle is only recorded.
func (b *OutputBinder) Resize(g host.Geometry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		b.rect = g
		return
	}
	b.applyRectLocked(g)
}

func (b *OutputBinder) applyRectLocked(g host.Geometry) {
	if g.Empty() {
		return
	}
	b.rect = g
	b.overlay.SetRenderRectangle(int(g.X), int(g.Y), int(g.Width), int(g.Height))
	b.overlay.Expose()
}

// Detach drops the surface handle before the subsurface is
// destroyed, so the sink cannot draw to a dead surface.
func (b *OutputBinder) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return
	}
	b.overlay.SetWindowHandle(0)
	b.attached = false
}
