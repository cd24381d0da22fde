package main

import (
	"sync"

	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/peercall/internal/app/orch"
)

func logStatus(s orch.Status) {
	ev := log.Info().
		Str("module", "peer").
		Str("relay", s.Relay.String()).
		Str("call", s.Call.String()).
		Str("peer", string(s.Peer))
	if s.Err != nil {
		ev = ev.AnErr("last_error", s.Err)
	}
	ev.Msg("status")
}

// packetLog stands in for a renderer: it counts remote RTP per track.
type packetLog struct {
	mu     sync.Mutex
	counts map[string]int
}

func newPacketLog() *packetLog {
	return &packetLog{counts: make(map[string]int)}
}

func (p *packetLog) WriteRTP(trackID string, pkt *rtp.Packet) {
	p.mu.Lock()
	p.counts[trackID]++
	n := p.counts[trackID]
	p.mu.Unlock()
	if n == 1 || n%500 == 0 {
		log.Debug().Str("module", "peer").Str("track", trackID).Uint16("seq", pkt.SequenceNumber).Int("packets", n).Msg("remote media")
	}
}
