package compositor

import (
	"sync"
	"sync/atomic"
	"weak"

	"github.com/mvailland/subwave/host"
)

// Hook is a commit-cycle callback. The registering component keeps the
// only strong reference; the bridge holds it weakly, so dropping the
// owner invalidates the hook without an explicit unregister on every
// teardown path. The callback receives the coalesced pending geometry,
// or nil when no geometry update arrived since the previous commit.
type Hook struct {
	fn func(pending *host.Geometry)
}

// NewHook wraps fn as a commit hook.
func NewHook(fn func(pending *host.Geometry)) *Hook {
	return &Hook{fn: fn}
}

// CommitBridge fans the host's per-commit callback out to registered
// hooks. Geometry updates pushed between commits collapse into a
// single pending slot: only the most recent value survives, and it is
// consumed at most once per commit cycle.
type CommitBridge struct {
	integration host.Integration
	hostHook    host.HookID

	pending atomic.Pointer[host.Geometry]

	mu     sync.Mutex
	hooks  []weak.Pointer[Hook]
	closed bool
}

// NewCommitBridge registers the bridge with the host and returns it.
func NewCommitBridge(integration host.Integration) *CommitBridge {
	b := &CommitBridge{integration: integration}
	b.hostHook = integration.RegisterPreCommitHook(b.onCommit)
	return b
}

// QueueGeometry stages a geometry update for the next commit cycle.
// Calls between two commits overwrite each other; intermediate values
// are never applied.
func (b *CommitBridge) QueueGeometry(g host.Geometry) {
	b.pending.Store(&g)
}

// Register adds a hook. The bridge keeps only a weak reference: the
// caller must retain the *Hook for as long as it wants callbacks.
func (b *CommitBridge) Register(h *Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.hooks = append(b.hooks, weak.Make(h))
}

// Clear drops every registered hook, breaking any capture cycles.
// The bridge stays registered with the host until Close.
func (b *CommitBridge) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = nil
}

// Close clears all hooks and detaches the bridge from the host.
// Safe to call more than once.
func (b *CommitBridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.hooks = nil
	b.mu.Unlock()

	b.integration.UnregisterPreCommitHook(b.hostHook)
}

// onCommit runs synchronously inside the host's commit cycle. It must
// complete in bounded time: no locks are held while hooks run beyond
// the registry snapshot, and hooks themselves never round-trip.
func (b *CommitBridge) onCommit() {
	pending := b.pending.Swap(nil)

	b.mu.Lock()
	live := b.hooks[:0]
	var fns []func(*host.Geometry)
	for _, wp := range b.hooks {
		if h := wp.Value(); h != nil {
			live = append(live, wp)
			fns = append(fns, h.fn)
		}
	}
	b.hooks = live
	b.mu.Unlock()

	for _, fn := range fns {
		fn(pending)
	}
}
