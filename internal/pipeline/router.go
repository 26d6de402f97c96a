package pipeline

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mvailland/subwave/internal/streams"
)

// SrcPad is the decoded source pad the demuxer exposes.
type SrcPad interface {
	// CapsName returns the media type of the pad, e.g. "video/x-raw".
	CapsName() string
	IsLinked() bool
	LinkTo(sink SinkPad) error
}

// SinkPad is a downstream branch entry point, one per stream kind.
type SinkPad interface {
	IsLinked() bool
}

// RouteOutcome reports what the router did with a pad.
type RouteOutcome int

const (
	RouteLinked RouteOutcome = iota
	RouteAlreadyLinked
	RouteUnknownKind
	RouteKindUnavailable
	RouteStale
	RouteFailed
)

// Router dispatches demuxer pads to per-kind branches by caps prefix.
// Pad callbacks arrive on streaming threads; all state is behind a
// mutex and a link failure only disables that kind for the rest of
// the graph's life.
type Router struct {
	log zerolog.Logger

	mu          sync.Mutex
	sinks       map[streams.Kind]SinkPad
	unavailable map[streams.Kind]bool
	generation  uint64
}

func NewRouter(log zerolog.Logger, generation uint64) *Router {
	return &Router{
		log:         log,
		sinks:       make(map[streams.Kind]SinkPad),
		unavailable: make(map[streams.Kind]bool),
		generation:  generation,
	}
}

// Bind registers the branch sink pad for a kind. Later binds replace
// earlier ones and clear the unavailable mark.
func (r *Router) Bind(kind streams.Kind, sink SinkPad) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[kind] = sink
	delete(r.unavailable, kind)
}

// Route links a freshly exposed pad into its branch. generation is
// the counter value the pad callback captured at registration time;
// callbacks that outlive a stop observe a newer counter and must not
// touch the graph.
func (r *Router) Route(pad SrcPad, generation uint64) (RouteOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if generation != r.generation {
		return RouteStale, nil
	}

	caps := pad.CapsName()
	kind, ok := streams.KindForCaps(caps)
	if !ok {
		r.log.Debug().Str("caps", caps).Msg("ignoring pad of unknown kind")
		return RouteUnknownKind, nil
	}
	if r.unavailable[kind] {
		return RouteKindUnavailable, nil
	}

	sink, ok := r.sinks[kind]
	if !ok {
		r.unavailable[kind] = true
		return RouteKindUnavailable, nil
	}
	if pad.IsLinked() || sink.IsLinked() {
		return RouteAlreadyLinked, nil
	}

	if err := pad.LinkTo(sink); err != nil {
		r.unavailable[kind] = true
		lerr := &LinkError{Kind: kind, Caps: caps, Err: err}
		r.log.Warn().Err(lerr).Msg("pad link failed, continuing without stream kind")
		return RouteFailed, lerr
	}
	r.log.Debug().Str("caps", caps).Str("kind", string(kind)).Msg("pad routed")
	return RouteLinked, nil
}

// Invalidate bumps the generation so that in-flight pad callbacks
// created before a stop become no-ops.
func (r *Router) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
}

// Generation returns the current counter, to be captured by newly
// registered pad callbacks.
func (r *Router) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Unavailable reports whether a kind has been disabled by a link
// failure or a missing branch.
func (r *Router) Unavailable(kind streams.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unavailable[kind]
}
