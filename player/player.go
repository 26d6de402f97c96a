// Package player coordinates the compositor surfaces and the decode
// graph behind a small, non-blocking playback API. All pipeline work
// runs on a dedicated lifecycle goroutine; the embedder's UI thread
// only posts commands and reads cached state.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mvailland/subwave/host"
	"github.com/mvailland/subwave/internal/config"
	"github.com/mvailland/subwave/internal/pipeline"
	"github.com/mvailland/subwave/internal/streams"
)

// ErrInvalidTrack re-exports the catalog's sentinel so embedders can
// match it without importing an internal package.
var ErrInvalidTrack = streams.ErrInvalidTrack

// graphDriver is the slice of the decode graph the coordinator
// drives. Narrow so tests can fake it.
type graphDriver interface {
	Play() error
	Pause() error
	Seek(pos time.Duration, accurate bool) error
	SetRate(rate float64) error
	SetVolume(v float64) error
	SetMuted(m bool) error
	Position() (time.Duration, bool)
	Duration() (time.Duration, bool)
	ApplySelection(ids []string) error
	MarkReady()
	Quiesce()
	Close()
}

type surfaceController interface {
	VideoSurfaceHandle() host.SurfaceHandle
	MarkVideoMapped()
	Teardown(ctx context.Context)
}

type outputBinder interface {
	Attach(surface host.SurfaceHandle, g host.Geometry)
	Resize(g host.Geometry)
	Detach()
}

type geometryBridge interface {
	QueueGeometry(g host.Geometry)
	Clear()
	Close()
}

type busWatcher interface {
	Start(ctx context.Context)
	Stop()
}

// parts is everything a Load assembles and a Stop tears down.
type parts struct {
	graph    graphDriver
	surfaces surfaceController
	output   outputBinder
	bridge   geometryBridge
	watch    busWatcher
	conn     interface{ Close() }
}

type buildFunc func(ctx context.Context, uri string, h pipeline.Handlers, deliver func(func())) (*parts, error)

// Player is the lifecycle coordinator for one media item.
type Player struct {
	log     zerolog.Logger
	cfg     *config.Config
	catalog *streams.Catalog
	build   buildFunc

	cmds chan func()
	ctl  chan func()
	quit chan struct{}
	done chan struct{}

	mu             sync.Mutex
	state          LifecycleState
	parts          *parts
	looping        bool
	buffering      bool
	wantPlay       bool
	collectionSeen bool
	stopped        bool
	duration       time.Duration
	onEOS          func()
	onError        func(error)
}

// New creates an idle player bound to the embedder's surface. No
// compositor or pipeline resources exist until Load.
func New(cfg *config.Config, log zerolog.Logger, integration host.Integration) *Player {
	p := newPlayer(cfg, log)
	p.build = realBuild(cfg, p.log, integration)
	return p
}

func newPlayer(cfg *config.Config, log zerolog.Logger) *Player {
	p := &Player{
		log:     log.With().Str("component", "player").Logger(),
		cfg:     cfg,
		catalog: streams.NewCatalog(),
		cmds:    make(chan func(), 64),
		ctl:     make(chan func()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		state:   StateUninitialized,
	}
	go p.run()
	return p
}

func (p *Player) run() {
	defer close(p.done)
	for {
		select {
		case fn := <-p.ctl:
			// Teardown path: runs even after the stopped flag is set.
			fn()
		case fn := <-p.cmds:
			p.mu.Lock()
			skip := p.stopped
			p.mu.Unlock()
			if !skip {
				fn()
			}
		case <-p.quit:
			return
		}
	}
}

// post hands a closure to the lifecycle goroutine. Callers never
// block: under backpressure the send is shifted to a helper
// goroutine.
func (p *Player) post(fn func()) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	select {
	case p.cmds <- fn:
	default:
		go func() {
			select {
			case p.cmds <- fn:
			case <-p.quit:
			}
		}()
	}
}

// deliver is the bus watch's path onto the lifecycle goroutine.
func (p *Player) deliver(fn func()) { p.post(fn) }

// State returns the current lifecycle state.
func (p *Player) State() LifecycleState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) setState(s LifecycleState) {
	p.mu.Lock()
	old := p.state
	p.state = s
	p.mu.Unlock()
	if old != s {
		p.log.Debug().Str("from", old.String()).Str("to", s.String()).Msg("state change")
	}
}

// OnEndOfStream registers the end-of-stream callback. It runs on the
// lifecycle goroutine.
func (p *Player) OnEndOfStream(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEOS = fn
}

// OnError registers the fatal-error callback. It runs on the
// lifecycle goroutine after the player enters the error state.
func (p *Player) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

// Load builds the surfaces and the decode graph for uri and prerolls
// it paused. Returns immediately; readiness and failures arrive
// through the bus.
func (p *Player) Load(ctx context.Context, uri string) error {
	p.mu.Lock()
	if !canTransition(p.state, StateGraphBuilding) {
		err := &StateTransitionError{From: p.state, To: StateGraphBuilding, Op: "load"}
		p.mu.Unlock()
		return err
	}
	p.state = StateGraphBuilding
	p.mu.Unlock()

	p.post(func() {
		prts, err := p.build(ctx, uri, p.handlers(), p.deliver)
		if err != nil {
			p.fail(err)
			return
		}
		p.mu.Lock()
		p.parts = prts
		p.mu.Unlock()
		prts.watch.Start(ctx)
		if err := prts.graph.Pause(); err != nil {
			p.fail(err)
		}
	})
	return nil
}

func (p *Player) handlers() pipeline.Handlers {
	return pipeline.Handlers{
		OnReady:           p.handleReady,
		OnCollection:      p.handleCollection,
		OnEndOfStream:     p.handleEOS,
		OnError:           p.fail,
		OnBuffering:       p.handleBuffering,
		OnDurationChanged: p.handleDurationChanged,
	}
}

// handleReady fires once preroll completes: the sink has committed
// its first buffer, so geometry commits may include the video
// surface from here on.
func (p *Player) handleReady() {
	p.mu.Lock()
	prts := p.parts
	wantPlay := p.wantPlay
	building := p.state == StateGraphBuilding
	p.mu.Unlock()
	if prts == nil {
		return
	}

	prts.graph.MarkReady()
	prts.surfaces.MarkVideoMapped()

	if !building {
		return
	}
	if wantPlay {
		if err := prts.graph.Play(); err != nil {
			p.fail(err)
			return
		}
		p.setState(StatePlaying)
	} else {
		p.setState(StatePaused)
	}
}

func (p *Player) handleCollection(col *streams.Collection) {
	p.catalog.Replace(col)

	p.mu.Lock()
	first := !p.collectionSeen
	p.collectionSeen = true
	prts := p.parts
	p.mu.Unlock()

	if first {
		p.catalog.SelectInitial()
	}
	ids := p.catalog.SelectedIDs()
	if prts != nil && len(ids) > 0 {
		if err := prts.graph.ApplySelection(ids); err != nil {
			p.log.Warn().Err(err).Msg("stream selection rejected")
		}
	}
}

func (p *Player) handleEOS() {
	p.mu.Lock()
	looping := p.looping
	prts := p.parts
	cb := p.onEOS
	p.mu.Unlock()

	if looping && prts != nil {
		if err := prts.graph.Seek(0, false); err == nil {
			return
		}
		p.log.Warn().Msg("loop rewind failed, reporting end of stream")
	}
	if cb != nil {
		cb()
	}
}

// handleBuffering gates playback on network starvation: below 100%
// the pipeline holds in paused without leaving the public playing
// state.
func (p *Player) handleBuffering(percent int) {
	p.mu.Lock()
	prts := p.parts
	playing := p.state == StatePlaying
	wasBuffering := p.buffering
	p.mu.Unlock()
	if prts == nil {
		return
	}

	if percent < 100 {
		if playing && !wasBuffering {
			p.mu.Lock()
			p.buffering = true
			p.mu.Unlock()
			p.log.Debug().Int("percent", percent).Msg("buffering, holding pipeline")
			if err := prts.graph.Pause(); err != nil {
				p.fail(err)
			}
		}
		return
	}
	if wasBuffering {
		p.mu.Lock()
		p.buffering = false
		resume := p.wantPlay
		p.mu.Unlock()
		if resume {
			p.log.Debug().Msg("buffer refilled, resuming")
			if err := prts.graph.Play(); err != nil {
				p.fail(err)
			}
		}
	}
}

// handleDurationChanged refreshes the cached duration; queries can
// transiently fail mid-stream, the cache papers over that.
func (p *Player) handleDurationChanged() {
	p.mu.Lock()
	prts := p.parts
	p.mu.Unlock()
	if prts == nil {
		return
	}
	if d, ok := prts.graph.Duration(); ok {
		p.mu.Lock()
		p.duration = d
		p.mu.Unlock()
	}
}

// fail reports a fatal error and releases everything: the player
// enters the error state, surfaces err through the callback, then
// runs the stop sequence itself. Runs on the lifecycle goroutine.
func (p *Player) fail(err error) {
	p.mu.Lock()
	if p.stopped || !canTransition(p.state, StateError) {
		p.mu.Unlock()
		p.log.Error().Err(err).Str("state", p.state.String()).Msg("error after teardown began")
		return
	}
	p.state = StateError
	cb := p.onError
	p.mu.Unlock()

	p.log.Error().Err(err).Msg("entering error state")
	if cb != nil {
		cb(err)
	}

	p.mu.Lock()
	if p.stopped {
		// A concurrent Stop claimed teardown while the callback ran.
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.state = StateStopping
	prts := p.parts
	p.mu.Unlock()
	p.teardown(context.Background(), prts)
}

// Play requests playback. During graph building the request is
// remembered and applied once preroll completes.
func (p *Player) Play() error {
	p.mu.Lock()
	st := p.state
	if st != StateGraphBuilding && !canTransition(st, StatePlaying) {
		p.mu.Unlock()
		return &StateTransitionError{From: st, To: StatePlaying, Op: "play"}
	}
	p.wantPlay = true
	prts := p.parts
	buffering := p.buffering
	p.mu.Unlock()

	if st == StateGraphBuilding || prts == nil || buffering {
		return nil
	}
	p.post(func() {
		if err := prts.graph.Play(); err != nil {
			p.fail(err)
			return
		}
		p.setState(StatePlaying)
	})
	return nil
}

// Pause requests pause, with the same staging rules as Play.
func (p *Player) Pause() error {
	p.mu.Lock()
	st := p.state
	if st != StateGraphBuilding && !canTransition(st, StatePaused) {
		p.mu.Unlock()
		return &StateTransitionError{From: st, To: StatePaused, Op: "pause"}
	}
	p.wantPlay = false
	prts := p.parts
	p.mu.Unlock()

	if st == StateGraphBuilding || prts == nil {
		return nil
	}
	p.post(func() {
		if err := prts.graph.Pause(); err != nil {
			p.fail(err)
			return
		}
		p.setState(StatePaused)
	})
	return nil
}

// Seek repositions playback. Legal only with a prerolled graph.
func (p *Player) Seek(pos time.Duration) error {
	p.mu.Lock()
	st := p.state
	prts := p.parts
	p.mu.Unlock()
	if st != StatePlaying && st != StatePaused {
		return &StateTransitionError{From: st, Op: "seek"}
	}
	accurate := p.cfg.Playback.SeekAccurate
	p.post(func() {
		if err := prts.graph.Seek(pos, accurate); err != nil {
			p.log.Warn().Err(err).Dur("pos", pos).Msg("seek rejected")
		}
	})
	return nil
}

// SetRate changes playback speed. Legal only with a prerolled graph.
func (p *Player) SetRate(rate float64) error {
	p.mu.Lock()
	st := p.state
	prts := p.parts
	p.mu.Unlock()
	if st != StatePlaying && st != StatePaused {
		return &StateTransitionError{From: st, Op: "set-rate"}
	}
	p.post(func() {
		if err := prts.graph.SetRate(rate); err != nil {
			p.log.Warn().Err(err).Float64("rate", rate).Msg("rate change rejected")
		}
	})
	return nil
}

func (p *Player) SetVolume(v float64) {
	p.withGraph(func(g graphDriver) {
		if err := g.SetVolume(v); err != nil {
			p.log.Warn().Err(err).Msg("volume change rejected")
		}
	})
}

func (p *Player) SetMuted(muted bool) {
	p.withGraph(func(g graphDriver) {
		if err := g.SetMuted(muted); err != nil {
			p.log.Warn().Err(err).Msg("mute change rejected")
		}
	})
}

// SetLooping makes end-of-stream rewind to the start instead of
// surfacing the callback.
func (p *Player) SetLooping(loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.looping = loop
}

func (p *Player) withGraph(fn func(graphDriver)) {
	p.mu.Lock()
	prts := p.parts
	p.mu.Unlock()
	if prts == nil {
		return
	}
	p.post(func() { fn(prts.graph) })
}

// Position returns the current playback position, if known.
func (p *Player) Position() (time.Duration, bool) {
	p.mu.Lock()
	prts := p.parts
	p.mu.Unlock()
	if prts == nil {
		return 0, false
	}
	return prts.graph.Position()
}

// Duration returns the media duration, if known. Falls back to the
// last value seen on a duration-changed message when the live query
// fails.
func (p *Player) Duration() (time.Duration, bool) {
	p.mu.Lock()
	prts := p.parts
	cached := p.duration
	p.mu.Unlock()
	if prts == nil {
		return 0, false
	}
	if d, ok := prts.graph.Duration(); ok {
		return d, true
	}
	if cached > 0 {
		return cached, true
	}
	return 0, false
}

// Tracks lists the streams of a kind in the current collection.
func (p *Player) Tracks(kind streams.Kind) []streams.Descriptor {
	return p.catalog.List(kind)
}

// SelectedTrack returns the selected stream id for a kind.
func (p *Player) SelectedTrack(kind streams.Kind) (string, bool) {
	return p.catalog.Current(kind)
}

// SelectTrack switches the active stream of a kind. Unknown ids fail
// with streams.ErrInvalidTrack and change nothing.
func (p *Player) SelectTrack(kind streams.Kind, id string) error {
	changed, err := p.catalog.Select(kind, id)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	ids := p.catalog.SelectedIDs()
	p.withGraph(func(g graphDriver) {
		if err := g.ApplySelection(ids); err != nil {
			p.log.Warn().Err(err).Msg("stream selection rejected")
		}
	})
	return nil
}

// DeselectTrack disables a whole kind, e.g. turning subtitles off.
func (p *Player) DeselectTrack(kind streams.Kind) {
	p.catalog.Deselect(kind)
	ids := p.catalog.SelectedIDs()
	p.withGraph(func(g graphDriver) {
		if err := g.ApplySelection(ids); err != nil {
			p.log.Warn().Err(err).Msg("stream selection rejected")
		}
	})
}

// SetGeometry stages new placement for the next commit cycle and
// updates the sink's render rectangle. Safe from the UI thread; the
// staged value is last-write-wins.
func (p *Player) SetGeometry(g host.Geometry) {
	p.mu.Lock()
	prts := p.parts
	p.mu.Unlock()
	if prts == nil {
		return
	}
	prts.bridge.QueueGeometry(g)
	prts.output.Resize(g)
}

// teardown runs the stop sequence in dependency order and finishes
// the lifecycle goroutine. Runs exactly once, on that goroutine.
func (p *Player) teardown(ctx context.Context, prts *parts) {
	if prts != nil {
		prts.watch.Stop()
		prts.graph.Quiesce()
		prts.bridge.Clear()
		prts.output.Detach()
		prts.surfaces.Teardown(ctx)
		prts.bridge.Close()
		prts.graph.Close()
		if prts.conn != nil {
			prts.conn.Close()
		}
	}
	p.mu.Lock()
	p.state = StateDestroyed
	p.parts = nil
	p.mu.Unlock()
	p.log.Info().Msg("player destroyed")
	close(p.quit)
}

// Stop tears everything down in dependency order and blocks until
// the player is destroyed. Safe to call from any state, repeatedly.
func (p *Player) Stop(ctx context.Context) {
	p.mu.Lock()
	st := p.state
	if st == StateStopping || st == StateDestroyed {
		p.mu.Unlock()
		// Another Stop, or a fatal error, owns teardown; wait it out.
		<-p.done
		return
	}
	if st == StateUninitialized {
		p.state = StateDestroyed
		p.stopped = true
		p.mu.Unlock()
		close(p.quit)
		<-p.done
		return
	}
	p.state = StateStopping
	// From here queued bus callbacks and new commands are dropped.
	p.stopped = true
	prts := p.parts
	p.mu.Unlock()

	// ctl bypasses the stopped flag, so teardown itself is never
	// dropped, and runs serialized with any in-flight command.
	p.ctl <- func() { p.teardown(ctx, prts) }
	<-p.done
}
