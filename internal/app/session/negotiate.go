package session

import (
	"context"
	"errors"

	"github.com/dkeye/peercall/internal/domain"
)

// CreateOffer runs Idle -> OfferCreated -> LocalSet and returns the offer to send.
func (s *Session) CreateOffer(ctx context.Context, c domain.Constraints) (domain.SessionDescriptor, error) {
	const op = "create-offer"
	if !s.flow.TryLock() {
		return domain.SessionDescriptor{}, &domain.NegotiationError{Op: op, Err: domain.ErrOperationPending}
	}
	defer s.flow.Unlock()

	if err := s.begin(op, domain.Outgoing); err != nil {
		return domain.SessionDescriptor{}, err
	}
	offer, err := s.neg.CreateOffer(ctx, c)
	if err != nil {
		return domain.SessionDescriptor{}, s.abort(err)
	}
	if err := s.move(op, domain.StateOfferCreated, domain.StateIdle); err != nil {
		return domain.SessionDescriptor{}, err
	}
	if err := s.neg.SetLocalDescription(ctx, offer); err != nil {
		return domain.SessionDescriptor{}, s.abort(err)
	}
	if err := s.move(op, domain.StateLocalSet, domain.StateOfferCreated); err != nil {
		return domain.SessionDescriptor{}, err
	}
	return offer, nil
}

// MarkOfferSent records that the offer left through the relay.
func (s *Session) MarkOfferSent() error {
	return s.move("offer-sent", domain.StateOfferSent, domain.StateLocalSet)
}

// AcceptOffer runs Idle -> RemoteSet -> AnswerCreated -> LocalSet -> Negotiating
// and returns the answer to send back.
func (s *Session) AcceptOffer(ctx context.Context, offer domain.SessionDescriptor, c domain.Constraints) (domain.SessionDescriptor, error) {
	const op = "accept-offer"
	if offer.Type != domain.SDPOffer {
		return domain.SessionDescriptor{}, &domain.NegotiationError{Op: op, Err: errors.New("descriptor is not an offer")}
	}
	if !s.flow.TryLock() {
		return domain.SessionDescriptor{}, &domain.NegotiationError{Op: op, Err: domain.ErrOperationPending}
	}
	defer s.flow.Unlock()

	if err := s.begin(op, domain.Incoming); err != nil {
		return domain.SessionDescriptor{}, err
	}
	if err := s.neg.SetRemoteDescription(ctx, offer); err != nil {
		return domain.SessionDescriptor{}, s.abort(err)
	}
	if err := s.remoteApplied(op, domain.StateIdle); err != nil {
		return domain.SessionDescriptor{}, err
	}
	answer, err := s.neg.CreateAnswer(ctx, c)
	if err != nil {
		return domain.SessionDescriptor{}, s.abort(err)
	}
	if err := s.move(op, domain.StateAnswerCreated, domain.StateRemoteSet); err != nil {
		return domain.SessionDescriptor{}, err
	}
	if err := s.neg.SetLocalDescription(ctx, answer); err != nil {
		return domain.SessionDescriptor{}, s.abort(err)
	}
	if err := s.move(op, domain.StateLocalSet, domain.StateAnswerCreated); err != nil {
		return domain.SessionDescriptor{}, err
	}
	if err := s.move(op, domain.StateNegotiating, domain.StateLocalSet); err != nil {
		return domain.SessionDescriptor{}, err
	}
	return answer, nil
}

// ApplyAnswer is only valid in OfferSent. Any other state is reported and
// leaves the session untouched.
func (s *Session) ApplyAnswer(ctx context.Context, answer domain.SessionDescriptor) error {
	const op = "apply-answer"
	if answer.Type != domain.SDPAnswer {
		return &domain.NegotiationError{Op: op, Err: errors.New("descriptor is not an answer")}
	}
	if !s.flow.TryLock() {
		return &domain.NegotiationError{Op: op, Err: domain.ErrOperationPending}
	}
	defer s.flow.Unlock()

	if st := s.State(); st != domain.StateOfferSent {
		return s.wrongState(op, st)
	}
	if err := s.neg.SetRemoteDescription(ctx, answer); err != nil {
		return s.abort(err)
	}
	if err := s.remoteApplied(op, domain.StateOfferSent); err != nil {
		return err
	}
	return s.move(op, domain.StateNegotiating, domain.StateRemoteSet)
}

func (s *Session) begin(op string, dir domain.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateIdle {
		return s.wrongStateLocked(op, s.state)
	}
	s.direction = dir
	return nil
}

// move switches to "to" if the current state is "from". A session that
// already reached Connected is not moved back to Negotiating, and one whose
// connectivity checks already succeeded goes straight to Connected.
func (s *Session) move(op string, to, from domain.ConnectionState) error {
	s.mu.Lock()
	if s.state == domain.StateConnected && to == domain.StateNegotiating {
		s.mu.Unlock()
		return nil
	}
	if s.state != from {
		err := s.wrongStateLocked(op, s.state)
		s.mu.Unlock()
		return err
	}
	if to == domain.StateNegotiating && s.iceUp {
		to = domain.StateConnected
	}
	s.state = to
	s.mu.Unlock()

	s.logger.Debug().Str("op", op).Str("from", from.String()).Str("to", to.String()).Msg("state")
	s.notify(to)
	return nil
}

// remoteApplied switches to RemoteSet and flushes buffered candidates in
// receipt order before any new candidate can be applied.
func (s *Session) remoteApplied(op string, from domain.ConnectionState) error {
	s.mu.Lock()
	if s.state != from {
		err := s.wrongStateLocked(op, s.state)
		s.mu.Unlock()
		return err
	}
	s.state = domain.StateRemoteSet
	s.remoteSet = true
	s.flushLocked()
	s.mu.Unlock()

	s.notify(domain.StateRemoteSet)
	return nil
}

// abort fails the session on an engine error. Errors caused by a concurrent
// teardown are returned as is.
func (s *Session) abort(err error) error {
	if errors.Is(err, domain.ErrSessionClosed) {
		return err
	}
	s.Fail(err)
	return err
}

func (s *Session) wrongState(op string, st domain.ConnectionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrongStateLocked(op, st)
}

func (s *Session) wrongStateLocked(op string, st domain.ConnectionState) error {
	if st.Terminal() {
		return &domain.NegotiationError{Op: op, Err: domain.ErrSessionClosed}
	}
	s.logger.Warn().Str("op", op).Str("state", st.String()).Msg("operation in wrong state")
	return &domain.NegotiationError{Op: op, Err: domain.ErrWrongState}
}
