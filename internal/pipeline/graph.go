package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-gst/go-glib/glib"
	"github.com/go-gst/go-gst/gst"
	"github.com/rs/zerolog"

	"github.com/mvailland/subwave/internal/config"
	"github.com/mvailland/subwave/internal/streams"
)

var gstInit sync.Once

// GraphBuilder assembles decode graphs. The fixed stages (source,
// per-kind branches, sinks) are created synchronously; decoded pads
// are linked in as the demuxer discovers them.
type GraphBuilder struct {
	Log    zerolog.Logger
	Config config.PlaybackConfig
	Binder *OutputBinder
}

// Graph is a live decode graph. State transitions block and must run
// on the lifecycle goroutine, never on the UI thread.
type Graph struct {
	log    zerolog.Logger
	binder *OutputBinder
	router *Router

	pipeline *gst.Pipeline
	decode   *gst.Element
	volume   *gst.Element
	vbranch  *videoBranch

	mu            sync.Mutex
	padAdded      glib.SignalHandle
	streamsByID   map[string]*gst.Stream
	rate          float64
	ready         bool
	pendingSelect []string
	closed        bool
}

// Build constructs the graph for uri. Missing plugins surface as
// GraphConstructionError; the graph stays in NULL until Pause or
// Play.
func (b *GraphBuilder) Build(uri string) (*Graph, error) {
	gstInit.Do(func() { gst.Init(nil) })

	log := b.Log.With().Str("component", "pipeline").Logger()

	pipeline, err := gst.NewPipeline("subwave")
	if err != nil {
		return nil, &GraphConstructionError{Stage: "pipeline", Err: err}
	}

	g := &Graph{
		log:      log,
		binder:   b.Binder,
		router:   NewRouter(log, 0),
		pipeline: pipeline,
		rate:     1.0,
	}

	if err := g.buildSource(uri, b.Config); err != nil {
		g.Close()
		return nil, err
	}
	if err := g.buildVideoBranch(); err != nil {
		g.Close()
		return nil, err
	}
	if err := g.buildAudioBranch(b.Config); err != nil {
		g.Close()
		return nil, err
	}
	if err := g.buildTextBranch(); err != nil {
		g.Close()
		return nil, err
	}

	gen := g.router.Generation()
	handle, err := g.decode.Connect("pad-added", func(_ *gst.Element, pad *gst.Pad) {
		g.onPadAdded(pad, gen)
	})
	if err != nil {
		g.Close()
		return nil, &GraphConstructionError{Stage: "pad-added", Err: err}
	}
	g.padAdded = handle

	log.Info().Str("uri", uri).Msg("decode graph built")
	return g, nil
}

func (g *Graph) buildSource(uri string, cfg config.PlaybackConfig) error {
	decode, err := gst.NewElement("uridecodebin3")
	if err != nil {
		return &GraphConstructionError{Stage: "uridecodebin3", Err: err}
	}
	if err := decode.SetProperty("uri", uri); err != nil {
		return &GraphConstructionError{Stage: "uridecodebin3", Err: err}
	}
	// Buffering tuning only matters for network sources; the element
	// ignores it for file URIs.
	if cfg.BufferDuration > 0 {
		if err := decode.SetProperty("buffer-duration", int64(cfg.BufferDuration)); err != nil {
			g.log.Debug().Err(err).Msg("buffer-duration not supported")
		}
	}
	if cfg.RingBufferMaxSize > 0 {
		if err := decode.SetProperty("ring-buffer-max-size", cfg.RingBufferMaxSize); err != nil {
			g.log.Debug().Err(err).Msg("ring-buffer-max-size not supported")
		}
	}
	if err := g.pipeline.Add(decode); err != nil {
		return &GraphConstructionError{Stage: "uridecodebin3", Err: err}
	}
	g.decode = decode
	return nil
}

// The video chain is queue -> subtitleoverlay -> waylandsink. The
// overlay passes buffers through untouched while no subtitle stream
// feeds it, so the zero-copy path survives; without the plugin the
// chain degrades to queue -> sink and subtitles go unrendered.
func (g *Graph) buildVideoBranch() error {
	queue, err := gst.NewElement("queue")
	if err != nil {
		return &GraphConstructionError{Stage: "video-queue", Err: err}
	}
	overlay, overlayErr := gst.NewElement("subtitleoverlay")
	if overlayErr != nil {
		g.log.Warn().Err(overlayErr).Msg("subtitleoverlay unavailable, subtitles will not render")
		overlay = nil
	}

	sink := g.binder.Element()
	chain := []*gst.Element{queue, sink}
	if overlay != nil {
		chain = []*gst.Element{queue, overlay, sink}
	}
	for _, el := range chain {
		if err := g.pipeline.Add(el); err != nil {
			return &GraphConstructionError{Stage: "video-branch", Err: err}
		}
	}
	if err := gst.ElementLinkMany(chain...); err != nil {
		return &GraphConstructionError{Stage: "video-branch", Err: err}
	}

	pre := queue
	if overlay != nil {
		pre = overlay
	}
	g.vbranch = &videoBranch{graph: g, queue: queue, overlay: overlay, pre: pre, sink: sink}
	g.router.Bind(streams.KindVideo, gstSinkPad{queue.GetStaticPad("sink")})
	return nil
}

func (g *Graph) buildAudioBranch(cfg config.PlaybackConfig) error {
	names := []string{"queue", "audioconvert", "audioresample", "volume", "autoaudiosink"}
	els := make([]*gst.Element, 0, len(names))
	for _, name := range names {
		el, err := gst.NewElement(name)
		if err != nil {
			return &GraphConstructionError{Stage: name, Err: err}
		}
		if err := g.pipeline.Add(el); err != nil {
			return &GraphConstructionError{Stage: name, Err: err}
		}
		els = append(els, el)
	}
	if err := gst.ElementLinkMany(els...); err != nil {
		return &GraphConstructionError{Stage: "audio-branch", Err: err}
	}
	g.volume = els[3]
	if err := g.volume.SetProperty("volume", cfg.Volume); err != nil {
		return &GraphConstructionError{Stage: "volume", Err: err}
	}
	g.router.Bind(streams.KindAudio, gstSinkPad{els[0].GetStaticPad("sink")})
	return nil
}

// Subtitle streams feed the video branch's subtitleoverlay, which
// renders them onto the frames before the sink. When the overlay is
// missing the branch terminates in a clocked fakesink so selection
// still works.
func (g *Graph) buildTextBranch() error {
	queue, err := gst.NewElement("queue")
	if err != nil {
		return &GraphConstructionError{Stage: "text-queue", Err: err}
	}
	if err := g.pipeline.Add(queue); err != nil {
		return &GraphConstructionError{Stage: "text-branch", Err: err}
	}

	if ov := g.vbranch.overlay; ov != nil {
		if ret := queue.GetStaticPad("src").Link(ov.GetStaticPad("subtitle_sink")); ret != gst.PadLinkOK {
			return &GraphConstructionError{Stage: "text-branch", Err: fmt.Errorf("subtitle pad link returned %v", ret)}
		}
	} else {
		sink, err := gst.NewElement("fakesink")
		if err != nil {
			return &GraphConstructionError{Stage: "text-sink", Err: err}
		}
		if err := sink.SetProperty("sync", true); err != nil {
			return &GraphConstructionError{Stage: "text-sink", Err: err}
		}
		if err := g.pipeline.Add(sink); err != nil {
			return &GraphConstructionError{Stage: "text-branch", Err: err}
		}
		if err := queue.Link(sink); err != nil {
			return &GraphConstructionError{Stage: "text-branch", Err: err}
		}
	}

	g.router.Bind(streams.KindSubtitle, gstSinkPad{queue.GetStaticPad("sink")})
	return nil
}

func (g *Graph) onPadAdded(pad *gst.Pad, gen uint64) {
	src := gstSrcPad{pad}
	outcome, err := g.router.Route(src, gen)
	if err != nil {
		// Link failures degrade the kind; the router already logged.
		return
	}
	// Normalization splices elements into the pipeline, so it must not
	// run until the router has proven the callback current; a stale
	// outcome means teardown already owns the graph.
	if outcome != RouteLinked {
		return
	}
	if kind, ok := streams.KindForCaps(src.CapsName()); ok && kind == streams.KindVideo {
		g.vbranch.ensureNormalization(pad)
	}
}

// Bus exposes the pipeline bus for the watch goroutine.
func (g *Graph) Bus() *gst.Bus { return g.pipeline.GetPipelineBus() }

// Pause moves the graph to PAUSED. Blocks until the transition is
// dispatched; completion arrives as an async-done bus message.
func (g *Graph) Pause() error {
	if err := g.pipeline.SetState(gst.StatePaused); err != nil {
		return fmt.Errorf("pipeline: pause: %w", err)
	}
	return nil
}

func (g *Graph) Play() error {
	if err := g.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("pipeline: play: %w", err)
	}
	return nil
}

// Seek repositions the stream. Always flushing; keyunit snapping
// unless accurate is set.
func (g *Graph) Seek(pos time.Duration, accurate bool) error {
	flags := gst.SeekFlagFlush | gst.SeekFlagKeyUnit
	if accurate {
		flags = gst.SeekFlagFlush | gst.SeekFlagAccurate
	}
	g.mu.Lock()
	rate := g.rate
	g.mu.Unlock()
	if !g.sendSeek(rate, pos, flags) {
		return fmt.Errorf("pipeline: seek to %s rejected", pos)
	}
	return nil
}

// SetRate changes playback speed by re-seeking from the current
// position with the new rate.
func (g *Graph) SetRate(rate float64) error {
	if rate == 0 {
		return fmt.Errorf("pipeline: rate must be non-zero")
	}
	pos, ok := g.Position()
	if !ok {
		pos = 0
	}
	if !g.sendSeek(rate, pos, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
		return fmt.Errorf("pipeline: rate change to %v rejected", rate)
	}
	g.mu.Lock()
	g.rate = rate
	g.mu.Unlock()
	return nil
}

// sendSeek carries both repositioning and rate changes, so the rate
// survives subsequent seeks.
func (g *Graph) sendSeek(rate float64, pos time.Duration, flags gst.SeekFlags) bool {
	ev := gst.NewSeekEvent(rate, gst.FormatTime, flags,
		gst.SeekTypeSet, pos.Nanoseconds(), gst.SeekTypeNone, 0)
	return g.pipeline.SendEvent(ev)
}

func (g *Graph) Position() (time.Duration, bool) {
	ok, ns := g.pipeline.QueryPosition(gst.FormatTime)
	if !ok || ns < 0 {
		return 0, false
	}
	return time.Duration(ns), true
}

func (g *Graph) Duration() (time.Duration, bool) {
	ok, ns := g.pipeline.QueryDuration(gst.FormatTime)
	if !ok || ns < 0 {
		return 0, false
	}
	return time.Duration(ns), true
}

func (g *Graph) SetVolume(v float64) error {
	if v < 0 {
		v = 0
	}
	return g.volume.SetProperty("volume", v)
}

func (g *Graph) SetMuted(muted bool) error {
	return g.volume.SetProperty("mute", muted)
}

// retainStreams keeps the GstStream objects of the latest collection;
// select-streams events must reference them, not bare ids.
func (g *Graph) retainStreams(byID map[string]*gst.Stream) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.streamsByID = byID
}

// ApplySelection sends a select-streams event for the given stream
// ids. Before the graph first reaches PAUSED the event would be
// dropped by the demuxer, so it is staged and flushed by MarkReady.
func (g *Graph) ApplySelection(ids []string) error {
	g.mu.Lock()
	if !g.ready {
		g.pendingSelect = append([]string(nil), ids...)
		g.mu.Unlock()
		g.log.Debug().Strs("streams", ids).Msg("selection staged until graph is ready")
		return nil
	}
	g.mu.Unlock()
	return g.sendSelection(ids)
}

// MarkReady flushes any staged selection. Called once the bus
// reports the initial async transition complete.
func (g *Graph) MarkReady() {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		return
	}
	g.ready = true
	staged := g.pendingSelect
	g.pendingSelect = nil
	g.mu.Unlock()

	if len(staged) > 0 {
		if err := g.sendSelection(staged); err != nil {
			g.log.Warn().Err(err).Msg("staged stream selection failed")
		}
	}
}

func (g *Graph) sendSelection(ids []string) error {
	g.mu.Lock()
	sel := make([]*gst.Stream, 0, len(ids))
	for _, id := range ids {
		if st, ok := g.streamsByID[id]; ok {
			sel = append(sel, st)
		}
	}
	g.mu.Unlock()

	if len(sel) == 0 {
		return fmt.Errorf("pipeline: no retained streams match selection %v", ids)
	}
	if !g.pipeline.SendEvent(gst.NewSelectStreamsEvent(sel)) {
		return fmt.Errorf("pipeline: select-streams event rejected")
	}
	g.log.Debug().Strs("streams", ids).Msg("stream selection sent")
	return nil
}

// Generation returns the router's current counter; pad callbacks
// captured before a Close observe a stale value and do nothing.
func (g *Graph) Generation() uint64 { return g.router.Generation() }

// Quiesce detaches the pad-added handler and invalidates in-flight
// pad callbacks without releasing the graph, so surface teardown can
// proceed while streaming threads drain.
func (g *Graph) Quiesce() {
	g.disconnectPadAdded()
	g.router.Invalidate()
}

func (g *Graph) disconnectPadAdded() {
	g.mu.Lock()
	handle := g.padAdded
	g.padAdded = 0
	g.mu.Unlock()
	if handle != 0 {
		g.decode.HandlerDisconnect(handle)
	}
}

// Close tears the graph down: future pad callbacks are invalidated
// first so streaming threads cannot touch a dying pipeline.
func (g *Graph) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()

	g.disconnectPadAdded()
	g.router.Invalidate()
	if err := g.pipeline.SetState(gst.StateNull); err != nil {
		g.log.Warn().Err(err).Msg("pipeline shutdown reported error")
	}
	g.log.Debug().Msg("decode graph released")
}

// videoBranch is the queue -> [overlay] -> [normalize] -> sink chain.
// The normalization stage is inserted lazily, only when the sink
// cannot accept the decoder's output directly, so colorimetry
// survives untouched in the common path.
type videoBranch struct {
	graph   *Graph
	queue   *gst.Element
	overlay *gst.Element
	// pre is the element feeding the sink, where normalization splices.
	pre  *gst.Element
	sink *gst.Element

	mu         sync.Mutex
	normalizer *gst.Element
}

func (v *videoBranch) ensureNormalization(pad *gst.Pad) {
	caps := pad.GetCurrentCaps()
	if caps == nil {
		return
	}
	sinkPad := v.sink.GetStaticPad("sink")
	if sinkPad.QueryAcceptCaps(caps) {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.normalizer != nil {
		return
	}

	conv, err := gst.NewElement("vapostproc")
	if err == nil {
		// Hardware path: force real conversion and, where the driver
		// supports it, HDR tone mapping. Older vapostproc builds lack
		// these properties, so failures are ignored.
		_ = conv.SetProperty("disable-passthrough", true)
		_ = conv.SetProperty("hdr-tone-mapping", true)
	} else {
		conv, err = gst.NewElement("videoconvert")
		if err != nil {
			v.graph.log.Warn().Err(err).Msg("no normalization element available")
			return
		}
	}
	if err := v.graph.pipeline.Add(conv); err != nil {
		v.graph.log.Warn().Err(err).Msg("cannot add normalization stage")
		return
	}
	v.pre.Unlink(v.sink)
	if err := gst.ElementLinkMany(v.pre, conv, v.sink); err != nil {
		v.graph.log.Warn().Err(err).Msg("cannot splice normalization stage")
		return
	}
	if !conv.SyncStateWithParent() {
		v.graph.log.Warn().Msg("normalization stage state sync failed")
		return
	}
	v.normalizer = conv
	v.graph.log.Info().Str("element", conv.GetName()).Msg("video normalization stage inserted")
}

// gstSrcPad adapts a demuxer pad to the router.
type gstSrcPad struct{ pad *gst.Pad }

func (p gstSrcPad) CapsName() string {
	caps := p.pad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return ""
	}
	return caps.GetStructureAt(0).Name()
}

func (p gstSrcPad) IsLinked() bool { return p.pad.IsLinked() }

func (p gstSrcPad) LinkTo(sink SinkPad) error {
	gp, ok := sink.(gstSinkPad)
	if !ok {
		return fmt.Errorf("incompatible sink pad %T", sink)
	}
	if ret := p.pad.Link(gp.pad); ret != gst.PadLinkOK {
		return fmt.Errorf("pad link returned %v", ret)
	}
	return nil
}

type gstSinkPad struct{ pad *gst.Pad }

func (p gstSinkPad) IsLinked() bool { return p.pad.IsLinked() }
