package compositor

import (
	"context"
	"fmt"
	"sync"

	"github.com/mvailland/subwave/host"
	"github.com/mvailland/subwave/internal/logging"
)

// Black, fully opaque, in ARGB order.
const backgroundColor = 0xFF000000

// backgroundSize is the initial solid-buffer size. The viewport scales
// it to the actual video area, so the buffer itself never changes.
const backgroundSize = 64

// SurfaceController owns the child surfaces: a desynchronized video
// surface the decode graph renders into, and a synchronized opaque
// background below it. It is the only component that creates, commits,
// or destroys them; everyone else holds at most the video surface
// handle.
//
// Two invariants are enforced here rather than left to callers:
//   - a surface is never committed before its first content buffer is
//     attached (an early commit maps an empty surface and can leave the
//     child invisible with no protocol error to show for it);
//   - teardown always runs unmap → detach relationship → destroy
//     surface, in that order, exactly once.
type SurfaceController struct {
	conn   Conn
	bridge *CommitBridge

	video         Surface
	videoSub      Subsurface
	videoViewport Viewport

	background         Surface
	backgroundSub      Subsurface
	backgroundViewport Viewport
	backgroundBuffer   Buffer

	// hook is the strong reference keeping our commit hook alive in
	// the bridge's weak registry.
	hook *Hook

	mu          sync.Mutex
	videoMapped bool
	tornDown    bool
	geometry    host.Geometry
}

// NewSurfaceController creates the child surfaces against the host's
// parent surface and registers the geometry-apply hook with the
// bridge. On any failure the partially created objects are destroyed
// and ErrSurfaceCreation is returned so the caller can fall back to
// the texture-upload path.
func NewSurfaceController(ctx context.Context, conn Conn, integration host.Integration, bridge *CommitBridge) (*SurfaceController, error) {
	log := logging.FromContext(ctx)
	parent := integration.ParentSurface()

	c := &SurfaceController{conn: conn, bridge: bridge}

	var err error
	if c.video, err = conn.CreateSurface(); err != nil {
		return nil, fmt.Errorf("%w: video surface: %w", ErrSurfaceCreation, err)
	}
	if c.background, err = conn.CreateSurface(); err != nil {
		c.video.Destroy()
		return nil, fmt.Errorf("%w: background surface: %w", ErrSurfaceCreation, err)
	}

	if c.videoSub, err = conn.CreateSubsurface(c.video, parent); err != nil {
		c.destroyPartial()
		return nil, fmt.Errorf("%w: video subsurface: %w", ErrSurfaceCreation, err)
	}
	if c.backgroundSub, err = conn.CreateSubsurface(c.background, parent); err != nil {
		c.destroyPartial()
		return nil, fmt.Errorf("%w: background subsurface: %w", ErrSurfaceCreation, err)
	}

	// Video content updates must not be gated on UI redraws, nor the
	// other way around.
	c.videoSub.SetDesync()
	// The background only changes on resize, which already happens
	// inside the parent's commit cycle.
	c.backgroundSub.SetSync()

	c.videoSub.PlaceBelow(parent)
	c.backgroundSub.PlaceBelow(c.video.Handle())

	c.videoViewport, err = conn.CreateViewport(c.video)
	if err != nil && err != ErrViewporterUnavailable {
		c.destroyPartial()
		return nil, fmt.Errorf("%w: video viewport: %w", ErrSurfaceCreation, err)
	}
	c.backgroundViewport, err = conn.CreateViewport(c.background)
	if err != nil && err != ErrViewporterUnavailable {
		c.destroyPartial()
		return nil, fmt.Errorf("%w: background viewport: %w", ErrSurfaceCreation, err)
	}
	if c.videoViewport == nil {
		log.Warn().Msg("viewporter unavailable, destination sizing disabled")
	}

	if c.backgroundBuffer, err = conn.CreateSolidBuffer(backgroundSize, backgroundSize, backgroundColor); err != nil {
		log.Warn().Err(err).Msg("no background buffer, video renders without backdrop")
	} else {
		c.background.Attach(c.backgroundBuffer)
		c.background.Damage(0, 0, backgroundSize, backgroundSize)
		// First buffer is attached, committing is legal now.
		c.background.Commit()
	}

	c.hook = NewHook(c.applyPending)
	bridge.Register(c.hook)

	if err := conn.Flush(); err != nil {
		log.Warn().Err(err).Msg("flush after surface setup failed")
	}

	log.Debug().
		Uint64("video_surface", uint64(c.video.Handle())).
		Msg("child surfaces created")
	return c, nil
}

// VideoSurfaceHandle returns the native handle the video sink renders
// into. The caller holds it as a non-owning reference.
func (c *SurfaceController) VideoSurfaceHandle() host.SurfaceHandle {
	return c.video.Handle()
}

// Geometry returns the last applied geometry.
func (c *SurfaceController) Geometry() host.Geometry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.geometry
}

// MarkVideoMapped records that the video sink attached its first
// buffer. Until then, geometry application skips the video surface
// commit; committing a buffer-less surface is the bug this guards
// against.
func (c *SurfaceController) MarkVideoMapped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoMapped = true
}

// applyPending runs inside the host commit cycle. It applies the
// coalesced geometry, if any, atomically with the parent's own commit.
// The lock is held across the protocol calls: Teardown runs on the
// lifecycle goroutine and must not destroy the surfaces between the
// liveness check and the requests. The requests are queue writes and
// never block.
func (c *SurfaceController) applyPending(pending *host.Geometry) {
	if pending == nil {
		return
	}
	g := *pending

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	c.geometry = g

	c.videoSub.SetPosition(g.X, g.Y)
	c.backgroundSub.SetPosition(g.X, g.Y)

	if c.videoViewport != nil && !g.Empty() {
		c.videoViewport.SetDestination(g.Width, g.Height)
	}
	if c.backgroundViewport != nil && !g.Empty() {
		c.backgroundViewport.SetDestination(g.Width, g.Height)
	}

	if c.backgroundBuffer != nil {
		c.background.Damage(0, 0, g.Width, g.Height)
		c.background.Commit()
	}
	if c.videoMapped {
		c.video.Damage(0, 0, g.Width, g.Height)
		c.video.Commit()
	}
}

// Teardown unwinds the child surfaces in the protocol-mandated order:
// unmap each child (null buffer attach + commit), break the
// child/parent relationships, then destroy the surface objects. Only
// after Teardown returns may the host destroy the parent surface.
// Subsequent calls are no-ops.
func (c *SurfaceController) Teardown(ctx context.Context) {
	log := logging.FromContext(ctx)

	// Held for the whole sequence: a commit-cycle hook in flight on
	// the UI thread finishes its protocol calls before any destroy.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	c.tornDown = true

	// Drop the strong hook reference: the bridge's weak entry dies
	// with it and no further geometry is applied.
	c.hook = nil

	// 1. Unmap: attach null buffers and commit.
	c.video.Attach(nil)
	c.video.Commit()
	c.background.Attach(nil)
	c.background.Commit()

	if err := c.conn.Flush(); err != nil {
		log.Warn().Err(err).Msg("flush during unmap failed")
	}

	if c.backgroundBuffer != nil {
		c.backgroundBuffer.Destroy()
		c.backgroundBuffer = nil
	}
	if c.videoViewport != nil {
		c.videoViewport.Destroy()
	}
	if c.backgroundViewport != nil {
		c.backgroundViewport.Destroy()
	}

	// 2. Break the child/parent relationships.
	c.videoSub.Destroy()
	c.backgroundSub.Destroy()

	// 3. Destroy the surface objects themselves.
	c.video.Destroy()
	c.background.Destroy()

	if err := c.conn.Flush(); err != nil {
		log.Warn().Err(err).Msg("flush during teardown failed")
	}
	log.Debug().Msg("child surfaces torn down")
}

// destroyPartial cleans up after a failed construction. Construction
// never attaches buffers to the video surface, so plain destroys are
// sufficient here.
func (c *SurfaceController) destroyPartial() {
	if c.backgroundViewport != nil {
		c.backgroundViewport.Destroy()
	}
	if c.videoViewport != nil {
		c.videoViewport.Destroy()
	}
	if c.backgroundSub != nil {
		c.backgroundSub.Destroy()
	}
	if c.videoSub != nil {
		c.videoSub.Destroy()
	}
	if c.background != nil {
		c.background.Destroy()
	}
	if c.video != nil {
		c.video.Destroy()
	}
}
