// Package compositor owns the child display surfaces used for
// zero-copy video output: their creation against a foreign parent
// surface, their update modes, the commit-cycle synchronization with
// the host, and the strict unmap → detach → destroy teardown order the
// protocol requires.
package compositor

import (
	"errors"

	"github.com/mvailland/subwave/host"
)

// ErrSurfaceCreation signals that the child surface could not be
// created. Callers fall back to the texture-upload backend.
var ErrSurfaceCreation = errors.New("compositor: surface creation failed")

// ErrConnClosed is returned from operations on a closed connection.
var ErrConnClosed = errors.New("compositor: connection closed")

// Conn is the narrow boundary to the display-server client library.
// One Conn wraps the host's existing display connection as a guest; it
// never owns the connection and closing it must not disconnect the
// host.
type Conn interface {
	// CreateSurface creates a new surface on the shared connection.
	CreateSurface() (Surface, error)

	// CreateSubsurface makes child a subsurface positioned relative
	// to the given parent surface.
	CreateSubsurface(child Surface, parent host.SurfaceHandle) (Subsurface, error)

	// CreateViewport creates a scaling viewport for the surface, or
	// returns ErrViewporterUnavailable when the compositor lacks the
	// extension.
	CreateViewport(s Surface) (Viewport, error)

	// CreateSolidBuffer returns an opaque single-color buffer of the
	// given size, backed by shared memory.
	CreateSolidBuffer(width, height int32, argb uint32) (Buffer, error)

	// Flush pushes pending protocol requests to the compositor.
	Flush() error

	// Close releases the guest resources. The underlying display
	// connection stays open.
	Close()
}

// ErrViewporterUnavailable is returned when the compositor does not
// expose the viewporter extension; destination sizing is skipped.
var ErrViewporterUnavailable = errors.New("compositor: viewporter unavailable")

// Surface is one protocol surface object.
type Surface interface {
	// Handle returns the native handle of the surface, suitable for
	// handing to a video sink.
	Handle() host.SurfaceHandle

	// Attach sets the surface content. A nil buffer unmaps the
	// surface on the next commit.
	Attach(b Buffer)

	// Damage marks a region as needing redraw.
	Damage(x, y, width, height int32)

	// Commit makes pending surface state visible.
	Commit()

	// Destroy releases the surface object.
	Destroy()
}

// Subsurface is the child-relationship object tying a surface to its
// parent.
type Subsurface interface {
	// SetPosition schedules a position change, applied on the next
	// parent commit.
	SetPosition(x, y int32)

	// SetDesync lets the surface update independently of parent
	// commits.
	SetDesync()

	// SetSync gates surface updates on parent commits.
	SetSync()

	// PlaceBelow stacks the subsurface below the given sibling or
	// parent surface.
	PlaceBelow(sibling host.SurfaceHandle)

	// PlaceAbove stacks the subsurface above the given sibling or
	// parent surface.
	PlaceAbove(sibling host.SurfaceHandle)

	// Destroy breaks the child/parent relationship.
	Destroy()
}

// Viewport scales surface content independently of buffer size.
type Viewport interface {
	SetDestination(width, height int32)
	SetSource(x, y, width, height float64)
	Destroy()
}

// Buffer is surface content.
type Buffer interface {
	Destroy()
}
