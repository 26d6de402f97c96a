package pipeline

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvailland/subwave/internal/streams"
)

type fakeSrcPad struct {
	caps     string
	linked   bool
	linkErr  error
	linkedTo SinkPad
}

func (p *fakeSrcPad) CapsName() string { return p.caps }
func (p *fakeSrcPad) IsLinked() bool   { return p.linked }
func (p *fakeSrcPad) LinkTo(sink SinkPad) error {
	if p.linkErr != nil {
		return p.linkErr
	}
	p.linked = true
	p.linkedTo = sink
	sink.(*fakeSinkPad).linked = true
	return nil
}

type fakeSinkPad struct {
	linked bool
}

func (p *fakeSinkPad) IsLinked() bool { return p.linked }

func newTestRouter() (*Router, *fakeSinkPad, *fakeSinkPad, *fakeSinkPad) {
	r := NewRouter(zerolog.Nop(), 0)
	v, a, s := &fakeSinkPad{}, &fakeSinkPad{}, &fakeSinkPad{}
	r.Bind(streams.KindVideo, v)
	r.Bind(streams.KindAudio, a)
	r.Bind(streams.KindSubtitle, s)
	return r, v, a, s
}

func TestRouteDispatchesByCapsPrefix(t *testing.T) {
	r, v, a, s := newTestRouter()

	cases := []struct {
		caps string
		sink *fakeSinkPad
	}{
		{"video/x-raw", v},
		{"audio/x-raw", a},
		{"text/x-raw", s},
	}
	for _, tc := range cases {
		pad := &fakeSrcPad{caps: tc.caps}
		out, err := r.Route(pad, 0)
		require.NoError(t, err, tc.caps)
		assert.Equal(t, RouteLinked, out, tc.caps)
		assert.Same(t, tc.sink, pad.linkedTo, tc.caps)
	}
}

func TestRouteIgnoresUnknownCaps(t *testing.T) {
	r, _, _, _ := newTestRouter()

	out, err := r.Route(&fakeSrcPad{caps: "application/x-id3"}, 0)
	require.NoError(t, err)
	assert.Equal(t, RouteUnknownKind, out)
}

func TestRouteIsIdempotentForLinkedPads(t *testing.T) {
	r, _, _, _ := newTestRouter()

	pad := &fakeSrcPad{caps: "video/x-raw"}
	out, err := r.Route(pad, 0)
	require.NoError(t, err)
	require.Equal(t, RouteLinked, out)

	// Re-delivery of the same pad, and a second pad racing for the
	// same branch, are both skipped without error.
	out, err = r.Route(pad, 0)
	require.NoError(t, err)
	assert.Equal(t, RouteAlreadyLinked, out)

	out, err = r.Route(&fakeSrcPad{caps: "video/x-raw"}, 0)
	require.NoError(t, err)
	assert.Equal(t, RouteAlreadyLinked, out)
}

func TestRouteLinkFailureDisablesKind(t *testing.T) {
	r, _, _, _ := newTestRouter()

	boom := errors.New("caps not negotiated")
	out, err := r.Route(&fakeSrcPad{caps: "audio/mpeg", linkErr: boom}, 0)
	assert.Equal(t, RouteFailed, out)

	var lerr *LinkError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, streams.KindAudio, lerr.Kind)
	assert.ErrorIs(t, err, boom)
	assert.True(t, r.Unavailable(streams.KindAudio))

	// The failed kind stays disabled; other kinds are untouched.
	out, err = r.Route(&fakeSrcPad{caps: "audio/x-raw"}, 0)
	require.NoError(t, err)
	assert.Equal(t, RouteKindUnavailable, out)

	out, err = r.Route(&fakeSrcPad{caps: "video/x-raw"}, 0)
	require.NoError(t, err)
	assert.Equal(t, RouteLinked, out)
}

func TestRouteStaleGenerationIsNoOp(t *testing.T) {
	r, v, _, _ := newTestRouter()

	gen := r.Generation()
	r.Invalidate()

	pad := &fakeSrcPad{caps: "video/x-raw"}
	out, err := r.Route(pad, gen)
	require.NoError(t, err)
	assert.Equal(t, RouteStale, out)
	assert.False(t, pad.linked)
	assert.False(t, v.linked)

	// A callback registered after the bump still routes.
	out, err = r.Route(pad, r.Generation())
	require.NoError(t, err)
	assert.Equal(t, RouteLinked, out)
}

// A video pad delivered by a streaming thread after teardown has
// begun must not touch any branch: the stale outcome both skips the
// link and, in the graph, gates the normalization splice.
func TestLatePadDuringTeardownTouchesNothing(t *testing.T) {
	r, v, _, _ := newTestRouter()

	gen := r.Generation()
	r.Invalidate()

	pad := &fakeSrcPad{caps: "video/x-raw"}
	out, err := r.Route(pad, gen)
	require.NoError(t, err)
	require.Equal(t, RouteStale, out)
	assert.False(t, pad.linked)
	assert.False(t, v.linked)
	assert.Nil(t, pad.linkedTo)
}

func TestBindClearsUnavailableMark(t *testing.T) {
	r, _, _, _ := newTestRouter()

	_, err := r.Route(&fakeSrcPad{caps: "text/x-raw", linkErr: errors.New("nope")}, 0)
	require.Error(t, err)
	require.True(t, r.Unavailable(streams.KindSubtitle))

	r.Bind(streams.KindSubtitle, &fakeSinkPad{})
	assert.False(t, r.Unavailable(streams.KindSubtitle))

	out, err := r.Route(&fakeSrcPad{caps: "text/x-raw"}, 0)
	require.NoError(t, err)
	assert.Equal(t, RouteLinked, out)
}
