package player

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvailland/subwave/host"
	"github.com/mvailland/subwave/internal/config"
	"github.com/mvailland/subwave/internal/pipeline"
	"github.com/mvailland/subwave/internal/streams"
)

// recorder collects operations across all fake parts so teardown
// ordering can be asserted globally.
type recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recorder) add(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ops))
	copy(out, r.ops)
	return out
}

func (r *recorder) index(op string) int {
	for i, o := range r.all() {
		if o == op {
			return i
		}
	}
	return -1
}

type fakeGraph struct {
	rec      *recorder
	playErr  error
	pauseErr error
}

func (g *fakeGraph) Play() error  { g.rec.add("graph-play"); return g.playErr }
func (g *fakeGraph) Pause() error { g.rec.add("graph-pause"); return g.pauseErr }
func (g *fakeGraph) Seek(pos time.Duration, accurate bool) error {
	g.rec.add(fmt.Sprintf("graph-seek %s accurate=%v", pos, accurate))
	return nil
}
func (g *fakeGraph) SetRate(rate float64) error {
	g.rec.add(fmt.Sprintf("graph-rate %v", rate))
	return nil
}
func (g *fakeGraph) SetVolume(v float64) error {
	g.rec.add(fmt.Sprintf("graph-volume %v", v))
	return nil
}
func (g *fakeGraph) SetMuted(m bool) error {
	g.rec.add(fmt.Sprintf("graph-mute %v", m))
	return nil
}
func (g *fakeGraph) Position() (time.Duration, bool) { return 42 * time.Second, true }
func (g *fakeGraph) Duration() (time.Duration, bool) { return 2 * time.Hour, true }
func (g *fakeGraph) ApplySelection(ids []string) error {
	g.rec.add(fmt.Sprintf("graph-select %v", ids))
	return nil
}
func (g *fakeGraph) MarkReady() { g.rec.add("graph-mark-ready") }
func (g *fakeGraph) Quiesce()   { g.rec.add("graph-quiesce") }
func (g *fakeGraph) Close()     { g.rec.add("graph-close") }

type fakeSurfaces struct{ rec *recorder }

func (s *fakeSurfaces) VideoSurfaceHandle() host.SurfaceHandle { return 0x1001 }
func (s *fakeSurfaces) MarkVideoMapped()                       { s.rec.add("surfaces-mark-mapped") }
func (s *fakeSurfaces) Teardown(context.Context)               { s.rec.add("surfaces-teardown") }

type fakeOutput struct{ rec *recorder }

func (o *fakeOutput) Attach(h host.SurfaceHandle, g host.Geometry) { o.rec.add("output-attach") }
func (o *fakeOutput) Resize(g host.Geometry) {
	o.rec.add(fmt.Sprintf("output-resize %dx%d", g.Width, g.Height))
}
func (o *fakeOutput) Detach() { o.rec.add("output-detach") }

type fakeBridge struct{ rec *recorder }

func (b *fakeBridge) QueueGeometry(g host.Geometry) {
	b.rec.add(fmt.Sprintf("bridge-queue %dx%d", g.Width, g.Height))
}
func (b *fakeBridge) Clear() { b.rec.add("bridge-clear") }
func (b *fakeBridge) Close() { b.rec.add("bridge-close") }

type fakeWatch struct{ rec *recorder }

func (w *fakeWatch) Start(context.Context) { w.rec.add("watch-start") }
func (w *fakeWatch) Stop()                 { w.rec.add("watch-stop") }

type fakeConn struct{ rec *recorder }

func (c *fakeConn) Close() { c.rec.add("conn-close") }

type fixture struct {
	rec      *recorder
	graph    *fakeGraph
	handlers pipeline.Handlers
	deliver  func(func())
	buildErr error
}

func newFixture(t *testing.T) (*Player, *fixture) {
	t.Helper()
	rec := &recorder{}
	fix := &fixture{rec: rec, graph: &fakeGraph{rec: rec}}

	cfg := &config.Config{Playback: config.PlaybackConfig{Volume: 1.0}}
	p := newPlayer(cfg, zerolog.Nop())
	p.build = func(ctx context.Context, uri string, h pipeline.Handlers, deliver func(func())) (*parts, error) {
		if fix.buildErr != nil {
			return nil, fix.buildErr
		}
		fix.handlers = h
		fix.deliver = deliver
		return &parts{
			graph:    fix.graph,
			surfaces: &fakeSurfaces{rec: rec},
			output:   &fakeOutput{rec: rec},
			bridge:   &fakeBridge{rec: rec},
			watch:    &fakeWatch{rec: rec},
			conn:     &fakeConn{rec: rec},
		}, nil
	}
	t.Cleanup(func() { p.Stop(context.Background()) })
	return p, fix
}

// drain waits until the lifecycle goroutine has processed everything
// posted so far.
func drain(t *testing.T, p *Player) {
	t.Helper()
	done := make(chan struct{})
	p.post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle goroutine stalled")
	}
}

func load(t *testing.T, p *Player, fix *fixture) {
	t.Helper()
	require.NoError(t, p.Load(context.Background(), "file:///movie.mkv"))
	drain(t, p)
	require.NotNil(t, fix.handlers.OnReady, "build was not invoked")
}

func ready(t *testing.T, p *Player, fix *fixture) {
	t.Helper()
	fix.deliver(fix.handlers.OnReady)
	drain(t, p)
}

func TestLoadPrerollsPaused(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)

	assert.Equal(t, StateGraphBuilding, p.State())
	assert.Contains(t, fix.rec.all(), "watch-start")
	assert.Contains(t, fix.rec.all(), "graph-pause")

	ready(t, p, fix)
	assert.Equal(t, StatePaused, p.State())
	assert.Contains(t, fix.rec.all(), "graph-mark-ready")
	assert.Contains(t, fix.rec.all(), "surfaces-mark-mapped")
}

func TestPlayDuringBuildAppliesOnReady(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)

	require.NoError(t, p.Play())
	drain(t, p)
	assert.NotContains(t, fix.rec.all(), "graph-play", "played before preroll")

	ready(t, p, fix)
	assert.Equal(t, StatePlaying, p.State())
	assert.Contains(t, fix.rec.all(), "graph-play")
}

func TestLoadTwiceIsRejected(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)

	err := p.Load(context.Background(), "file:///other.mkv")
	var terr *StateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StateGraphBuilding, terr.From)
}

func TestPlayPauseCycle(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)

	require.NoError(t, p.Play())
	drain(t, p)
	assert.Equal(t, StatePlaying, p.State())

	require.NoError(t, p.Pause())
	drain(t, p)
	assert.Equal(t, StatePaused, p.State())
}

func TestSeekRequiresPreroll(t *testing.T) {
	p, fix := newFixture(t)

	err := p.Seek(time.Minute)
	var terr *StateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "seek", terr.Op)

	load(t, p, fix)
	ready(t, p, fix)
	require.NoError(t, p.Seek(time.Minute))
	drain(t, p)
	assert.Contains(t, fix.rec.all(), "graph-seek 1m0s accurate=false")
}

func TestStopTeardownOrdering(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)
	require.NoError(t, p.Play())
	drain(t, p)

	p.Stop(context.Background())
	assert.Equal(t, StateDestroyed, p.State())

	order := []string{
		"watch-stop",
		"graph-quiesce",
		"bridge-clear",
		"output-detach",
		"surfaces-teardown",
		"bridge-close",
		"graph-close",
		"conn-close",
	}
	prev := -1
	for _, op := range order {
		idx := fix.rec.index(op)
		require.GreaterOrEqual(t, idx, 0, "%s never happened", op)
		assert.Greater(t, idx, prev, "%s out of order", op)
		prev = idx
	}

	// Stop again is a no-op.
	count := len(fix.rec.all())
	p.Stop(context.Background())
	assert.Equal(t, count, len(fix.rec.all()))
}

func TestStopBeforeLoad(t *testing.T) {
	p, _ := newFixture(t)
	p.Stop(context.Background())
	assert.Equal(t, StateDestroyed, p.State())
}

func TestBusCallbacksAfterStopAreDropped(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)

	eos := false
	p.OnEndOfStream(func() { eos = true })

	p.Stop(context.Background())
	fix.deliver(fix.handlers.OnEndOfStream)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, eos, "callback delivered after stop")
}

func TestEndOfStreamCallback(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)

	eos := make(chan struct{})
	p.OnEndOfStream(func() { close(eos) })

	fix.deliver(fix.handlers.OnEndOfStream)
	select {
	case <-eos:
	case <-time.After(2 * time.Second):
		t.Fatal("end of stream not delivered")
	}
}

func TestLoopingRewindsInsteadOfCallback(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)
	p.SetLooping(true)

	eos := false
	p.OnEndOfStream(func() { eos = true })

	fix.deliver(fix.handlers.OnEndOfStream)
	drain(t, p)
	assert.Contains(t, fix.rec.all(), "graph-seek 0s accurate=false")
	assert.False(t, eos)
}

func TestBufferingGatesPlayback(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)
	require.NoError(t, p.Play())
	drain(t, p)

	fix.deliver(func() { fix.handlers.OnBuffering(35) })
	drain(t, p)
	// Held internally, still publicly playing.
	assert.Equal(t, StatePlaying, p.State())
	ops := fix.rec.all()
	assert.Equal(t, "graph-pause", ops[len(ops)-1])

	fix.deliver(func() { fix.handlers.OnBuffering(100) })
	drain(t, p)
	ops = fix.rec.all()
	assert.Equal(t, "graph-play", ops[len(ops)-1])
}

func collection() *streams.Collection {
	return streams.NewCollection([]streams.Descriptor{
		{ID: "v1", Kind: streams.KindVideo, Caps: "video/x-h264"},
		{ID: "a1", Kind: streams.KindAudio, Language: "en"},
		{ID: "a2", Kind: streams.KindAudio, Language: "fr"},
		{ID: "s1", Kind: streams.KindSubtitle, Caps: "text/x-raw"},
	})
}

func TestCollectionTriggersInitialSelection(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)

	fix.deliver(func() { fix.handlers.OnCollection(collection()) })
	drain(t, p)

	assert.Contains(t, fix.rec.all(), "graph-select [v1 a1 s1]")
	assert.Len(t, p.Tracks(streams.KindAudio), 2)

	id, ok := p.SelectedTrack(streams.KindAudio)
	require.True(t, ok)
	assert.Equal(t, "a1", id)
}

func TestSelectTrack(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)
	fix.deliver(func() { fix.handlers.OnCollection(collection()) })
	drain(t, p)

	require.NoError(t, p.SelectTrack(streams.KindAudio, "a2"))
	drain(t, p)
	assert.Contains(t, fix.rec.all(), "graph-select [v1 a2 s1]")

	err := p.SelectTrack(streams.KindAudio, "nope")
	assert.ErrorIs(t, err, streams.ErrInvalidTrack)

	// Kind mismatch is invalid too.
	err = p.SelectTrack(streams.KindVideo, "a2")
	assert.ErrorIs(t, err, streams.ErrInvalidTrack)
}

func TestDeselectTrack(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)
	fix.deliver(func() { fix.handlers.OnCollection(collection()) })
	drain(t, p)

	p.DeselectTrack(streams.KindSubtitle)
	drain(t, p)
	assert.Contains(t, fix.rec.all(), "graph-select [v1 a1]")
}

func TestSetGeometryRoutesToBridgeAndSink(t *testing.T) {
	p, fix := newFixture(t)

	// Before load there is nothing to resize; must not panic.
	p.SetGeometry(host.Geometry{Width: 10, Height: 10})

	load(t, p, fix)
	ready(t, p, fix)

	p.SetGeometry(host.Geometry{Width: 1280, Height: 720})
	assert.Contains(t, fix.rec.all(), "bridge-queue 1280x720")
	assert.Contains(t, fix.rec.all(), "output-resize 1280x720")
}

func TestPipelineErrorTearsDown(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)

	type report struct {
		err   error
		state LifecycleState
	}
	reports := make(chan report, 1)
	p.OnError(func(err error) { reports <- report{err, p.State()} })

	fix.deliver(func() { fix.handlers.OnError(fmt.Errorf("decoder blew up")) })
	select {
	case r := <-reports:
		assert.Contains(t, r.err.Error(), "decoder blew up")
		// The callback observes the error state, before teardown.
		assert.Equal(t, StateError, r.state)
	case <-time.After(2 * time.Second):
		t.Fatal("error not delivered")
	}

	// The player releases everything on its own; no Stop required.
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("player did not destroy itself after the error")
	}
	assert.Equal(t, StateDestroyed, p.State())

	order := []string{"watch-stop", "graph-quiesce", "bridge-clear", "output-detach",
		"surfaces-teardown", "bridge-close", "graph-close", "conn-close"}
	prev := -1
	for _, op := range order {
		idx := fix.rec.index(op)
		require.GreaterOrEqual(t, idx, 0, "%s never happened", op)
		assert.Greater(t, idx, prev, "%s out of order", op)
		prev = idx
	}

	var terr *StateTransitionError
	require.ErrorAs(t, p.Play(), &terr)

	// Stop afterwards is a no-op.
	count := len(fix.rec.all())
	p.Stop(context.Background())
	assert.Equal(t, count, len(fix.rec.all()))
}

func TestBuildFailureTearsDown(t *testing.T) {
	p, fix := newFixture(t)
	fix.buildErr = fmt.Errorf("no wayland display")

	errs := make(chan error, 1)
	p.OnError(func(err error) { errs <- err })

	require.NoError(t, p.Load(context.Background(), "file:///movie.mkv"))
	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "no wayland display")
	case <-time.After(2 * time.Second):
		t.Fatal("build failure not reported")
	}

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("player did not destroy itself after the build failure")
	}
	assert.Equal(t, StateDestroyed, p.State())
}

func TestPositionAndDuration(t *testing.T) {
	p, fix := newFixture(t)

	_, ok := p.Position()
	assert.False(t, ok)

	load(t, p, fix)
	ready(t, p, fix)

	pos, ok := p.Position()
	require.True(t, ok)
	assert.Equal(t, 42*time.Second, pos)

	dur, ok := p.Duration()
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, dur)
}

func TestVolumeAndMute(t *testing.T) {
	p, fix := newFixture(t)
	load(t, p, fix)
	ready(t, p, fix)

	p.SetVolume(0.5)
	p.SetMuted(true)
	drain(t, p)
	assert.Contains(t, fix.rec.all(), "graph-volume 0.5")
	assert.Contains(t, fix.rec.all(), "graph-mute true")
}
