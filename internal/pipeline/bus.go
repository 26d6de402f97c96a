package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/rs/zerolog"

	"github.com/mvailland/subwave/internal/streams"
)

// Handlers receives translated pipeline events. The watch goroutine
// never calls them directly; each is wrapped in a closure and handed
// to the deliver function, which runs it on the lifecycle goroutine.
type Handlers struct {
	OnEndOfStream     func()
	OnError           func(error)
	OnCollection      func(*streams.Collection)
	OnBuffering       func(percent int)
	OnDurationChanged func()
	OnReady           func()
}

// BusWatch drains the pipeline bus with a timed pop so shutdown
// never waits on a blocked read.
type BusWatch struct {
	log     zerolog.Logger
	graph   *Graph
	bus     *gst.Bus
	deliver func(func())
	h       Handlers

	cancel context.CancelFunc
	done   chan struct{}
}

func NewBusWatch(log zerolog.Logger, graph *Graph, deliver func(func()), h Handlers) *BusWatch {
	return &BusWatch{
		log:     log.With().Str("component", "bus-watch").Logger(),
		graph:   graph,
		bus:     graph.Bus(),
		deliver: deliver,
		h:       h,
	}
}

func (w *BusWatch) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx)
}

// Stop halts the watch and waits for the goroutine to exit, so no
// closure is delivered after Stop returns.
func (w *BusWatch) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

func (w *BusWatch) run(ctx context.Context) {
	defer close(w.done)
	ready := false
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg := w.bus.PopMessage(gst.ClockTime(100 * time.Millisecond))
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			w.log.Debug().Msg("end of stream")
			if w.h.OnEndOfStream != nil {
				w.deliver(w.h.OnEndOfStream)
			}

		case gst.MessageError:
			gerr := msg.ParseError()
			err := fmt.Errorf("pipeline: %s: %s", msg.Source(), gerr.Error())
			w.log.Error().Str("source", msg.Source()).Msg(gerr.Error())
			if w.h.OnError != nil {
				w.deliver(func() { w.h.OnError(err) })
			}

		case gst.MessageWarning:
			werr := msg.ParseWarning()
			w.log.Warn().Str("source", msg.Source()).Msg(werr.Error())

		case gst.MessageStreamCollection:
			col, byID := collectionFromMessage(msg)
			w.graph.retainStreams(byID)
			w.log.Debug().Int("streams", col.Len()).Msg("stream collection published")
			if w.h.OnCollection != nil {
				w.deliver(func() { w.h.OnCollection(col) })
			}

		case gst.MessageBuffering:
			pct := msg.ParseBuffering()
			if w.h.OnBuffering != nil {
				w.deliver(func() { w.h.OnBuffering(pct) })
			}

		case gst.MessageDurationChanged:
			if w.h.OnDurationChanged != nil {
				w.deliver(w.h.OnDurationChanged)
			}

		case gst.MessageAsyncDone:
			if !ready {
				ready = true
				w.log.Debug().Msg("initial async transition complete")
				if w.h.OnReady != nil {
					w.deliver(w.h.OnReady)
				}
			}
		}
	}
}

// collectionFromMessage snapshots a GstStreamCollection into the
// immutable catalog form, keeping the GstStream objects keyed by id
// for later select-streams events.
func collectionFromMessage(msg *gst.Message) (*streams.Collection, map[string]*gst.Stream) {
	col := msg.ParseStreamCollection()
	if col == nil {
		return streams.NewCollection(nil), nil
	}
	n := col.GetSize()
	descs := make([]streams.Descriptor, 0, n)
	byID := make(map[string]*gst.Stream, n)
	for i := uint(0); i < n; i++ {
		st := col.GetStreamAt(i)
		if st == nil {
			continue
		}
		kind, ok := kindForStreamType(st.StreamType())
		if !ok {
			continue
		}
		d := streams.Descriptor{
			ID:   st.StreamID(),
			Kind: kind,
		}
		if caps := st.Caps(); caps != nil && caps.GetSize() > 0 {
			d.Caps = caps.GetStructureAt(0).Name()
		}
		if tags := st.Tags(); tags != nil {
			if lang, ok := tags.GetString(gst.TagLanguageCode); ok {
				d.Language = lang
			}
		}
		descs = append(descs, d)
		byID[d.ID] = st
	}
	return streams.NewCollection(descs), byID
}

func kindForStreamType(t gst.StreamType) (streams.Kind, bool) {
	switch {
	case t&gst.StreamTypeVideo != 0:
		return streams.KindVideo, true
	case t&gst.StreamTypeAudio != 0:
		return streams.KindAudio, true
	case t&gst.StreamTypeText != 0:
		return streams.KindSubtitle, true
	}
	return "", false
}
