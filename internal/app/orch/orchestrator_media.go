package orch

import (
	"errors"

	"github.com/dkeye/peercall/internal/app/session"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
)

var errICEFailed = errors.New("ice connectivity failed")

// onEngineEvent runs on the engine's dispatch goroutine.
func (o *Orchestrator) onEngineEvent(gen uint64, ev core.EngineEvent) {
	o.safely("engine-event", func() {
		switch ev := ev.(type) {
		case core.CandidateDiscovered:
			o.forwardCandidate(gen, ev.Candidate)
		case core.ICEStateChanged:
			o.log().Info().Str("ice_state", ev.State.String()).Msg("ICE state")
			sess := o.sessionOf(gen)
			if sess == nil {
				return
			}
			switch ev.State {
			case core.ICEConnected, core.ICECompleted:
				sess.MarkConnected()
			case core.ICEFailed:
				o.endSession(gen, errICEFailed)
			}
		case core.SignalingStateChanged:
			o.log().Debug().Str("signaling_state", ev.State).Msg("signaling state")
		case core.StreamAdded:
			o.log().Info().Str("stream_id", ev.StreamID).Str("track_id", ev.TrackID).Str("kind", ev.Kind.String()).Msg("remote stream added")
			o.observeStream(ev)
		case core.StreamRemoved:
			o.log().Info().Str("stream_id", ev.StreamID).Str("track_id", ev.TrackID).Msg("remote stream removed")
			o.observeStream(ev)
		}
	})
}

// forwardCandidate sends a local candidate to the correlated peer. Before
// the peer is known the candidate is dropped.
func (o *Orchestrator) forwardCandidate(gen uint64, c domain.Candidate) {
	o.mu.Lock()
	if o.gen != gen || o.call == nil {
		o.mu.Unlock()
		o.log().Debug().Str("mid", c.MediaLineID).Msg("dropping local candidate, no peer yet")
		return
	}
	to := o.call.Peer
	o.mu.Unlock()

	if err := o.Relay.Send(core.NewICE{To: to, Candidate: c}); err != nil {
		o.report("new-ice", &domain.TransportError{Op: "new-ice", Err: err})
	}
}

func (o *Orchestrator) observeStream(ev core.EngineEvent) {
	if o.Options.OnStream != nil {
		o.Options.OnStream(ev)
	}
}

func (o *Orchestrator) sessionOf(gen uint64) *session.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return nil
	}
	return o.sess
}

func (o *Orchestrator) live() (*session.Session, error) {
	sess, _ := o.current()
	if sess == nil || sess.State().Terminal() {
		return nil, domain.ErrNoSession
	}
	return sess, nil
}

func (o *Orchestrator) EnableAudio(on bool) error {
	sess, err := o.live()
	if err != nil {
		return err
	}
	return sess.EnableAudio(on)
}

func (o *Orchestrator) EnableVideo(on bool) error {
	sess, err := o.live()
	if err != nil {
		return err
	}
	return sess.EnableVideo(on)
}

func (o *Orchestrator) SwitchCamera() error {
	sess, err := o.live()
	if err != nil {
		return err
	}
	return sess.SwitchCamera()
}
