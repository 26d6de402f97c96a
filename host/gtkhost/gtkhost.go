// Package gtkhost adapts a realized GTK4 widget into the host
// integration the player consumes: the toplevel's wl_surface becomes
// the parent surface, the widget's frame clock drives the commit
// cycle, and the widget allocation supplies geometry.
package gtkhost

import (
	"fmt"
	"sync"

	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/mvailland/subwave/host"
)

// RunOnMain schedules fn on the GTK main loop. Player callbacks fire
// on its lifecycle goroutine; widget work must hop threads first.
func RunOnMain(fn func()) {
	glib.IdleAdd(func() bool {
		fn()
		return false
	})
}

// Host implements host.Integration on top of a GTK widget. Create it
// after the widget is realized; the native handles do not exist
// earlier.
type Host struct {
	widget  *gtk.Widget
	surface host.SurfaceHandle
	display host.DisplayHandle

	hooks  hookRegistry
	tickID uint

	mu   sync.Mutex
	geom host.Geometry
}

var _ host.Integration = (*Host)(nil)

// New wraps widget. The widget must already be realized and mapped
// on a Wayland display; on X11 or before realization this fails and
// the embedder uses the texture path instead.
func New(w gtk.Widgetter) (*Host, error) {
	widget := gtk.BaseWidget(w)
	if !widget.Realized() {
		return nil, fmt.Errorf("gtkhost: widget not realized")
	}
	surface, display, err := nativeHandles(widget)
	if err != nil {
		return nil, err
	}

	h := &Host{
		widget:  widget,
		surface: surface,
		display: display,
	}
	h.geom = h.readGeometry()

	// The tick callback fires once per frame-clock cycle, right
	// before GTK lays out and the toplevel commits. That is the
	// commit cycle the contract promises.
	h.tickID = widget.AddTickCallback(func(_ gtk.Widgetter, _ gdk.FrameClocker) bool {
		h.mu.Lock()
		h.geom = h.readGeometry()
		h.mu.Unlock()
		h.hooks.invoke()
		return true
	})
	return h, nil
}

// Close detaches from the frame clock. Registered hooks stop firing.
func (h *Host) Close() {
	if h.tickID != 0 {
		h.widget.RemoveTickCallback(h.tickID)
		h.tickID = 0
	}
	h.hooks.clear()
}

func (h *Host) ParentSurface() host.SurfaceHandle { return h.surface }
func (h *Host) Display() host.DisplayHandle { return h.display }

func (h *Host) Geometry() host.Geometry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.geom
}

func (h *Host) RegisterPreCommitHook(fn func()) host.HookID {
	return h.hooks.register(fn)
}

func (h *Host) UnregisterPreCommitHook(id host.HookID) {
	h.hooks.unregister(id)
}

// readGeometry resolves the widget allocation into toplevel surface
// coordinates. Runs on the GTK main thread only.
func (h *Host) readGeometry() host.Geometry {
	g := host.Geometry{
		Width:  int32(h.widget.AllocatedWidth()),
		Height: int32(h.widget.AllocatedHeight()),
	}
	if root, ok := h.widget.Root().(gtk.Widgetter); ok {
		if x, y, ok := h.widget.TranslateCoordinates(root, 0, 0); ok {
			g.X, g.Y = int32(x), int32(y)
		}
	}
	return g
}

// hookRegistry is the commit-hook table. Invocation snapshots the
// hooks so callbacks may unregister themselves.
type hookRegistry struct {
	mu    sync.Mutex
	next  host.HookID
	hooks map[host.HookID]func()
}

func (r *hookRegistry) register(fn func()) host.HookID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hooks == nil {
		r.hooks = make(map[host.HookID]func())
	}
	r.next++
	id := r.next
	r.hooks[id] = fn
	return id
}

func (r *hookRegistry) unregister(id host.HookID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, id)
}

func (r *hookRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = nil
}

func (r *hookRegistry) invoke() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.hooks))
	for _, fn := range r.hooks {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
