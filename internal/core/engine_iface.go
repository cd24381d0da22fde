package core

import (
	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media"
)

// MediaEngine is the callback-driven peer connection. Every completion callback
// may run on a goroutine owned by the engine.
type MediaEngine interface {
	CreateOffer(c domain.Constraints, done func(domain.SessionDescriptor, error))
	CreateAnswer(c domain.Constraints, done func(domain.SessionDescriptor, error))
	SetLocalDescription(d domain.SessionDescriptor, done func(error))
	SetRemoteDescription(d domain.SessionDescriptor, done func(error))
	// AddICECandidate applies a remote candidate. It requires a remote description.
	AddICECandidate(domain.Candidate) error
	// SetTrackEnabled toggles transmission of the local track of kind.
	// Returns false when no such track exists.
	SetTrackEnabled(kind domain.MediaKind, enabled bool) bool
	// LocalTrack returns nil when no such track exists.
	LocalTrack(kind domain.MediaKind) LocalTrack
	Close() error
}

// EngineFactory builds one engine per call attempt. sink receives engine events
// in the order the engine produced them.
type EngineFactory interface {
	NewEngine(opts EngineOptions, sink func(EngineEvent)) (MediaEngine, error)
}

type EngineOptions struct {
	// Video attaches a local video track; audio is always attached.
	Video bool
	// Remote receives RTP from remote tracks. Nil discards.
	Remote RemoteSink
}

// LocalTrack accepts encoded samples from an external encoder and drops them while disabled.
type LocalTrack interface {
	Enabled() bool
	SetEnabled(bool)
	WriteSample(media.Sample) error
}

type RemoteSink interface {
	WriteRTP(trackID string, pkt *rtp.Packet)
}
