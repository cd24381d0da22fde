package orch

import (
	"context"
	"errors"

	"github.com/dkeye/peercall/internal/app/session"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
)

// Call places an outgoing call to "to". It returns once the offer is sent.
func (o *Orchestrator) Call(ctx context.Context, to domain.PeerID) error {
	if err := domain.ValidatePeerID(to); err != nil {
		return err
	}
	o.callMu.Lock()
	defer o.callMu.Unlock()

	sess, gen, err := o.openSession(&domain.PendingCall{Peer: to, Direction: domain.Outgoing})
	if err != nil {
		return err
	}
	o.log().Info().Str("peer", string(to)).Msg("calling")

	offer, err := sess.CreateOffer(ctx, o.Options.Constraints)
	if err != nil {
		o.endSession(gen, err)
		return err
	}
	if err := o.Relay.Send(core.OfferCall{From: o.Local, To: to, SDP: offer.SDP}); err != nil {
		te := &domain.TransportError{Op: "offer-call", Err: err}
		o.endSession(gen, te)
		return te
	}
	return sess.MarkOfferSent()
}

// ReceiveCall answers an incoming offer. While another call is live the
// offer is rejected with domain.ErrCallActive and nothing is sent.
func (o *Orchestrator) ReceiveCall(ctx context.Context, from domain.PeerID, sdp string) error {
	if err := domain.ValidatePeerID(from); err != nil {
		return &domain.NegotiationError{Op: "receive-call", Err: err}
	}
	o.callMu.Lock()
	defer o.callMu.Unlock()

	sess, gen, err := o.openSession(nil)
	if errors.Is(err, domain.ErrCallActive) {
		o.log().Warn().Str("peer", string(from)).Msg("rejecting call, another call is live")
		return err
	}
	if err != nil {
		return err
	}
	o.log().Info().Str("peer", string(from)).Msg("incoming call")

	answer, err := sess.AcceptOffer(ctx, domain.NewOffer(sdp), o.Options.Constraints)
	if err != nil {
		o.endSession(gen, err)
		return err
	}
	if !o.correlate(gen, domain.PendingCall{Peer: from, Direction: domain.Incoming}) {
		return &domain.NegotiationError{Op: "receive-call", Err: domain.ErrSessionClosed}
	}
	if err := o.Relay.Send(core.AnswerCall{From: o.Local, To: from, SDP: answer.SDP}); err != nil {
		te := &domain.TransportError{Op: "answer-call", Err: err}
		o.endSession(gen, te)
		return te
	}
	return nil
}

// ReceiveAnswer applies the callee's answer. Only valid while the offer is out.
func (o *Orchestrator) ReceiveAnswer(ctx context.Context, sdp string) error {
	o.callMu.Lock()
	defer o.callMu.Unlock()

	sess, gen := o.current()
	if sess == nil {
		return &domain.NegotiationError{Op: "receive-answer", Err: domain.ErrNoSession}
	}
	if err := sess.ApplyAnswer(ctx, domain.NewAnswer(sdp)); err != nil {
		if sess.State() == domain.StateFailed {
			o.endSession(gen, err)
		}
		return err
	}
	return nil
}

// ReceiveCandidate hands a remote candidate to the session, whatever its
// state. Candidates that beat the first offer are held until a session
// exists; candidates for a call that already ended are dropped.
func (o *Orchestrator) ReceiveCandidate(c domain.Candidate) error {
	o.mu.Lock()
	sess := o.sess
	if sess != nil && sess.State().Terminal() {
		o.mu.Unlock()
		o.log().Debug().Str("mid", c.MediaLineID).Msg("candidate dropped, call ended")
		return nil
	}
	if sess == nil {
		limit := o.Options.EarlyBacklog
		if limit <= 0 {
			limit = defaultEarlyBacklog
		}
		if len(o.early) >= limit {
			o.early = o.early[1:]
		}
		o.early = append(o.early, c)
		o.mu.Unlock()
		o.log().Debug().Str("mid", c.MediaLineID).Msg("candidate held, no session yet")
		return nil
	}
	o.mu.Unlock()

	err := sess.AddCandidate(c)
	var ce *domain.CandidateError
	if errors.As(err, &ce) {
		// already logged by the session, the call carries on
		return nil
	}
	return err
}

// openSession replaces a terminal (or missing) session with a fresh one.
// call is the peer correlation for outgoing calls; incoming calls correlate
// once the answer is ready.
func (o *Orchestrator) openSession(call *domain.PendingCall) (*session.Session, uint64, error) {
	o.mu.Lock()
	if o.sess != nil && !o.sess.State().Terminal() {
		o.mu.Unlock()
		return nil, 0, domain.ErrCallActive
	}
	gen := o.gen + 1
	o.mu.Unlock()

	video := o.Camera != nil && o.Camera.Available()
	engine, err := o.Engines.NewEngine(core.EngineOptions{Video: video, Remote: o.Options.Remote}, func(ev core.EngineEvent) {
		o.onEngineEvent(gen, ev)
	})
	if err != nil {
		return nil, 0, &domain.NegotiationError{Op: "new-engine", Err: err}
	}
	sess := session.New(engine, o.Camera, session.Options{
		Capture:            o.Options.Capture,
		NegotiationTimeout: o.Options.NegotiationTimeout,
		OnState: func(st domain.ConnectionState) {
			o.updateStatus(func(s *Status) {
				if o.gen == gen {
					s.Call = st
				}
			})
		},
	})

	o.mu.Lock()
	o.gen = gen
	o.sess = sess
	o.call = call
	early := o.early
	o.early = nil
	if call == nil {
		for _, c := range early {
			_ = sess.AddCandidate(c)
		}
	}
	o.status.Call = domain.StateIdle
	o.status.Err = nil
	o.status.Peer = ""
	if call != nil {
		o.status.Peer = call.Peer
	}
	o.mu.Unlock()

	if err := sess.EnableAudio(o.Options.StartAudio); err != nil {
		o.log().Warn().Err(err).Msg("enable audio")
	}
	if err := sess.EnableVideo(o.Options.StartVideo); err != nil {
		o.log().Warn().Err(err).Msg("enable video")
	}
	return sess, gen, nil
}

// correlate records the remote party once per call. False if the session
// was replaced or torn down meanwhile.
func (o *Orchestrator) correlate(gen uint64, call domain.PendingCall) bool {
	o.mu.Lock()
	if o.gen != gen || o.sess == nil || o.sess.State().Terminal() || o.call != nil {
		o.mu.Unlock()
		return false
	}
	o.call = &call
	o.status.Peer = call.Peer
	o.mu.Unlock()
	return true
}

func (o *Orchestrator) current() (*session.Session, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess, o.gen
}

// endSession fails (err != nil) or closes the session of generation gen.
func (o *Orchestrator) endSession(gen uint64, err error) {
	o.mu.Lock()
	if o.gen != gen || o.sess == nil {
		o.mu.Unlock()
		return
	}
	s := o.sess
	o.call = nil
	o.early = nil
	o.mu.Unlock()

	if err != nil {
		s.Fail(err)
		return
	}
	s.Close()
}
