package rtc

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// localTrack gates an outgoing sample track. Disabled tracks stay negotiated
// but drop every sample written to them.
type localTrack struct {
	*webrtc.TrackLocalStaticSample
	enabled atomic.Bool
}

func newLocalTrack(mime, id, stream string) (*localTrack, error) {
	t, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, id, stream)
	if err != nil {
		return nil, err
	}
	return &localTrack{TrackLocalStaticSample: t}, nil
}

func (t *localTrack) Enabled() bool { return t.enabled.Load() }

func (t *localTrack) SetEnabled(v bool) { t.enabled.Store(v) }

func (t *localTrack) WriteSample(s media.Sample) error {
	if !t.enabled.Load() {
		return nil
	}
	return t.TrackLocalStaticSample.WriteSample(s)
}
