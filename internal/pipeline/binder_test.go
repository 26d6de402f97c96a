package pipeline

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/mvailland/subwave/host"
)

type fakeOverlay struct {
	ops []string
}

func (f *fakeOverlay) SetWindowHandle(h uintptr) {
	f.ops = append(f.ops, fmt.Sprintf("handle %#x", h))
}

func (f *fakeOverlay) SetRenderRectangle(x, y, w, h int) {
	f.ops = append(f.ops, fmt.Sprintf("rect %d,%d %dx%d", x, y, w, h))
}

func (f *fakeOverlay) Expose() {
	f.ops = append(f.ops, "expose")
}

func TestAttachSetsHandleThenRectangle(t *testing.T) {
	ov := &fakeOverlay{}
	b := newOutputBinderWith(zerolog.Nop(), nil, ov)

	b.Attach(host.SurfaceHandle(0xABC), host.Geometry{Width: 640, Height: 360})
	assert.Equal(t, []string{"handle 0xabc", "rect 0,0 640x360", "expose"}, ov.ops)
}

func TestResizeBeforeAttachIsDeferred(t *testing.T) {
	ov := &fakeOverlay{}
	b := newOutputBinderWith(zerolog.Nop(), nil, ov)

	b.Resize(host.Geometry{Width: 800, Height: 450})
	assert.Empty(t, ov.ops, "sink touched before the surface exists")

	// An empty attach geometry falls back to the recorded rectangle.
	b.Attach(host.SurfaceHandle(1), host.Geometry{})
	assert.Contains(t, ov.ops, "rect 0,0 800x450")
}

func TestResizeAfterAttachExposes(t *testing.T) {
	ov := &fakeOverlay{}
	b := newOutputBinderWith(zerolog.Nop(), nil, ov)

	b.Attach(host.SurfaceHandle(1), host.Geometry{Width: 100, Height: 100})
	ov.ops = nil

	b.Resize(host.Geometry{X: 10, Y: 20, Width: 300, Height: 200})
	assert.Equal(t, []string{"rect 10,20 300x200", "expose"}, ov.ops)
}

func TestEmptyGeometryNeverReachesSink(t *testing.T) {
	ov := &fakeOverlay{}
	b := newOutputBinderWith(zerolog.Nop(), nil, ov)

	b.Attach(host.SurfaceHandle(1), host.Geometry{Width: 100, Height: 100})
	ov.ops = nil

	b.Resize(host.Geometry{})
	assert.Empty(t, ov.ops)
}

func TestDetachDropsHandleOnce(t *testing.T) {
	ov := &fakeOverlay{}
	b := newOutputBinderWith(zerolog.Nop(), nil, ov)

	b.Attach(host.SurfaceHandle(0xABC), host.Geometry{Width: 1, Height: 1})
	ov.ops = nil

	b.Detach()
	b.Detach()
	assert.Equal(t, []string{"handle 0x0"}, ov.ops)

	// Resizes after detach are recorded but not applied.
	b.Resize(host.Geometry{Width: 9, Height: 9})
	assert.Equal(t, []string{"handle 0x0"}, ov.ops)
}
