package pipeline

import (
	"testing"

	"github.com/go-gst/go-gst/gst"
	"github.com/stretchr/testify/assert"

	"github.com/mvailland/subwave/internal/streams"
)

func TestKindForStreamType(t *testing.T) {
	cases := []struct {
		in   gst.StreamType
		want streams.Kind
		ok   bool
	}{
		{gst.StreamTypeVideo, streams.KindVideo, true},
		{gst.StreamTypeAudio, streams.KindAudio, true},
		{gst.StreamTypeText, streams.KindSubtitle, true},
		// Sparse video streams still count as video.
		{gst.StreamTypeVideo | gst.StreamTypeText, streams.KindVideo, true},
		{gst.StreamTypeContainer, "", false},
	}
	for _, tc := range cases {
		kind, ok := kindForStreamType(tc.in)
		assert.Equal(t, tc.ok, ok)
		if ok {
			assert.Equal(t, tc.want, kind)
		}
	}
}
