package compositor

import (
	"fmt"
	"sync"

	"github.com/mvailland/subwave/host"
)

// fakeConn records every protocol operation in order so tests can
// assert the teardown sequencing.
type fakeConn struct {
	mu  sync.Mutex
	ops []string

	surfaces      int
	viewporterOff bool
	shmOff        bool
	failSurfaces  bool

	// videoCommitGate, when set, blocks video-surface commits until
	// closed, to hold a hook mid-application.
	videoCommitGate chan struct{}
}

func (f *fakeConn) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

func (f *fakeConn) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

func (f *fakeConn) CreateSurface() (Surface, error) {
	if f.failSurfaces {
		return nil, fmt.Errorf("boom")
	}
	f.surfaces++
	name := fmt.Sprintf("s%d", f.surfaces)
	f.record("create-surface " + name)
	return &fakeSurface{conn: f, name: name, handle: host.SurfaceHandle(0x1000 + f.surfaces)}, nil
}

func (f *fakeConn) CreateSubsurface(child Surface, parent host.SurfaceHandle) (Subsurface, error) {
	name := child.(*fakeSurface).name
	f.record(fmt.Sprintf("create-subsurface %s parent=%#x", name, uintptr(parent)))
	return &fakeSubsurface{conn: f, name: name}, nil
}

func (f *fakeConn) CreateViewport(s Surface) (Viewport, error) {
	if f.viewporterOff {
		return nil, ErrViewporterUnavailable
	}
	name := s.(*fakeSurface).name
	f.record("create-viewport " + name)
	return &fakeViewport{conn: f, name: name}, nil
}

func (f *fakeConn) CreateSolidBuffer(width, height int32, argb uint32) (Buffer, error) {
	if f.shmOff {
		return nil, fmt.Errorf("no shm")
	}
	f.record(fmt.Sprintf("create-buffer %dx%d", width, height))
	return &fakeBuffer{conn: f}, nil
}

func (f *fakeConn) Flush() error { return nil }
func (f *fakeConn) Close()       { f.record("close") }

type fakeSurface struct {
	conn   *fakeConn
	name   string
	handle host.SurfaceHandle

	attached  bool
	committed int
}

func (s *fakeSurface) Handle() host.SurfaceHandle { return s.handle }

func (s *fakeSurface) Attach(b Buffer) {
	if b == nil {
		s.attached = false
		s.conn.record("attach-null " + s.name)
		return
	}
	s.attached = true
	s.conn.record("attach " + s.name)
}

func (s *fakeSurface) Damage(x, y, w, h int32) {
	s.conn.record(fmt.Sprintf("damage %s %dx%d", s.name, w, h))
}

func (s *fakeSurface) Commit() {
	if s.name == "s1" && s.conn.videoCommitGate != nil {
		<-s.conn.videoCommitGate
	}
	s.committed++
	s.conn.record("commit " + s.name)
}

func (s *fakeSurface) Destroy() { s.conn.record("destroy-surface " + s.name) }

type fakeSubsurface struct {
	conn *fakeConn
	name string
}

func (s *fakeSubsurface) SetPosition(x, y int32) {
	s.conn.record(fmt.Sprintf("set-position %s %d,%d", s.name, x, y))
}
func (s *fakeSubsurface) SetDesync() { s.conn.record("set-desync " + s.name) }
func (s *fakeSubsurface) SetSync()   { s.conn.record("set-sync " + s.name) }
func (s *fakeSubsurface) PlaceBelow(sibling host.SurfaceHandle) {
	s.conn.record(fmt.Sprintf("place-below %s %#x", s.name, uintptr(sibling)))
}
func (s *fakeSubsurface) PlaceAbove(sibling host.SurfaceHandle) {
	s.conn.record(fmt.Sprintf("place-above %s %#x", s.name, uintptr(sibling)))
}
func (s *fakeSubsurface) Destroy() { s.conn.record("destroy-subsurface " + s.name) }

type fakeViewport struct {
	conn *fakeConn
	name string
}

func (v *fakeViewport) SetDestination(w, h int32) {
	v.conn.record(fmt.Sprintf("viewport-dest %s %dx%d", v.name, w, h))
}
func (v *fakeViewport) SetSource(x, y, w, h float64) {
	v.conn.record(fmt.Sprintf("viewport-src %s", v.name))
}
func (v *fakeViewport) Destroy() { v.conn.record("destroy-viewport " + v.name) }

type fakeBuffer struct {
	conn *fakeConn
}

func (b *fakeBuffer) Destroy() { b.conn.record("destroy-buffer") }
