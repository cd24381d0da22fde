package rtc

import (
	"errors"
	"io"

	"github.com/dkeye/peercall/internal/core"
	"github.com/pion/webrtc/v4"
)

// readRemote pumps RTP from a remote track into the sink until the track ends.
func (e *Engine) readRemote(track *webrtc.TrackRemote) {
	logger := e.logger.With().Str("track_id", track.ID()).Logger()
	defer e.events.push(core.StreamRemoved{StreamID: track.StreamID(), TrackID: track.ID()})

	var packets uint64
	for {
		select {
		case <-e.ctx.Done():
			logger.Debug().Uint64("packets", packets).Msg("remote track ctx done")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug().Err(err).Msg("remote read RTP error, stopping")
			}
			logger.Debug().Uint64("packets", packets).Msg("remote track ended")
			return
		}
		packets++
		if e.remote != nil {
			e.remote.WriteRTP(track.ID(), pkt)
		}
	}
}
