package core

import "github.com/dkeye/peercall/internal/domain"

// RelayTransport is the client side of the signaling relay.
// Events is closed when the transport shuts down.
type RelayTransport interface {
	Events() <-chan RelayEvent
	Send(OutboundMessage) error
	Close() error
}

// RelayEvent is an inbound lifecycle or signaling event.
type RelayEvent interface {
	relayEvent()
}

type RelayConnected struct{}

type RelayDisconnected struct{ Err error }

type RelayConnectError struct{ Err error }

// RelayFailure reports a transport problem that did not end the connection,
// e.g. an undecodable payload or an error reply from the relay.
type RelayFailure struct{ Err error }

type CallReceived struct {
	From domain.PeerID
	SDP  string
}

type AnswerReceived struct{ SDP string }

type CandidateReceived struct{ Candidate domain.Candidate }

func (RelayConnected) relayEvent()    {}
func (RelayDisconnected) relayEvent() {}
func (RelayConnectError) relayEvent() {}
func (RelayFailure) relayEvent()      {}
func (CallReceived) relayEvent()      {}
func (AnswerReceived) relayEvent()    {}
func (CandidateReceived) relayEvent() {}

// OutboundMessage is one of CreateID, OfferCall, AnswerCall or NewICE.
type OutboundMessage interface {
	outbound()
}

type CreateID struct{ ID domain.PeerID }

type OfferCall struct {
	From domain.PeerID
	To   domain.PeerID
	SDP  string
}

type AnswerCall struct {
	From domain.PeerID
	To   domain.PeerID
	SDP  string
}

type NewICE struct {
	To        domain.PeerID
	Candidate domain.Candidate
}

func (CreateID) outbound()   {}
func (OfferCall) outbound()  {}
func (AnswerCall) outbound() {}
func (NewICE) outbound()     {}
