package host

import "sync"

// Fake is an in-memory Integration for tests. Commit invokes the
// registered hooks the way a real host does once per commit cycle.
type Fake struct {
	mu       sync.Mutex
	parent   SurfaceHandle
	display  DisplayHandle
	geometry Geometry
	hooks    map[HookID]func()
	nextID   HookID

	// Commits counts Commit calls, for assertions.
	Commits int
}

// NewFake returns a fake host with the given handles.
func NewFake(parent SurfaceHandle, display DisplayHandle) *Fake {
	return &Fake{
		parent:  parent,
		display: display,
		hooks:   make(map[HookID]func()),
	}
}

func (f *Fake) ParentSurface() SurfaceHandle { return f.parent }
func (f *Fake) Display() DisplayHandle { return f.display }

func (f *Fake) Geometry() Geometry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.geometry
}

// SetGeometry updates the geometry the host reports.
func (f *Fake) SetGeometry(g Geometry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geometry = g
}

func (f *Fake) RegisterPreCommitHook(fn func()) HookID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.hooks[id] = fn
	return id
}

func (f *Fake) UnregisterPreCommitHook(id HookID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hooks, id)
}

// HookCount returns the number of registered hooks.
func (f *Fake) HookCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hooks)
}

// Commit runs one host commit cycle: every hook is invoked exactly once.
func (f *Fake) Commit() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.hooks))
	for _, fn := range f.hooks {
		fns = append(fns, fn)
	}
	f.Commits++
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
