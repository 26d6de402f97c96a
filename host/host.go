// Package host defines the contract between a GUI application and the
// subsurface video layer. The host hands over its native display and
// parent-surface handles, a per-frame geometry source, and a way to run
// callbacks once per surface-commit cycle. Everything is carried in an
// explicit Integration value created at construction time; there is no
// process-global or thread-local state.
package host

import "fmt"

// SurfaceHandle is an opaque native surface identifier. It is a plain
// integer so it can cross goroutines freely; it is converted back to a
// native pointer only at the boundary call site.
type SurfaceHandle uintptr

// DisplayHandle is an opaque native display-connection identifier.
type DisplayHandle uintptr

// HookID identifies a registered pre-commit hook.
type HookID uint64

// Geometry is the logical position and size of the video area relative
// to the parent surface, produced by the host once per draw pass.
type Geometry struct {
	X, Y          int32
	Width, Height int32
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", g.Width, g.Height, g.X, g.Y)
}

// Empty reports whether the geometry has no visible area.
func (g Geometry) Empty() bool { return g.Width <= 0 || g.Height <= 0 }

// Integration is the host side of the contract. Implementations must
// invoke every registered pre-commit hook exactly once per commit
// cycle, synchronously, before the host commits its own surface. Hooks
// must complete in bounded, small time; they never perform blocking
// round-trips.
type Integration interface {
	// ParentSurface returns the handle of the surface the video
	// subsurface is positioned against.
	ParentSurface() SurfaceHandle

	// Display returns the handle of the display connection shared
	// with the host.
	Display() DisplayHandle

	// Geometry returns the current video-area geometry. Queried once
	// per host draw pass.
	Geometry() Geometry

	// RegisterPreCommitHook adds a callback invoked once per host
	// commit cycle.
	RegisterPreCommitHook(fn func()) HookID

	// UnregisterPreCommitHook removes a previously registered hook.
	// Unknown ids are ignored.
	UnregisterPreCommitHook(id HookID)
}
