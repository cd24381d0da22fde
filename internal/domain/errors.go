package domain

import (
	"errors"
	"fmt"
)

var (
	ErrWrongState        = errors.New("operation not allowed in current state")
	ErrSessionClosed     = errors.New("session closed")
	ErrOperationPending  = errors.New("negotiation operation already pending")
	ErrCallActive        = errors.New("call already active")
	ErrNoSession         = errors.New("no active session")
	ErrNoCamera          = errors.New("no camera device")
	ErrRelayDisconnected = errors.New("relay disconnected")
)

// TransportError covers the relay: unreachable, malformed payloads, full send queues.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// NegotiationError means the engine rejected a create/set call or the call came in the wrong state.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string { return fmt.Sprintf("negotiation %s: %v", e.Op, e.Err) }
func (e *NegotiationError) Unwrap() error { return e.Err }

// CandidateError is non-fatal, the session keeps going.
type CandidateError struct {
	Candidate Candidate
	Err       error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %s/%d: %v", e.Candidate.MediaLineID, e.Candidate.MediaLineIndex, e.Err)
}
func (e *CandidateError) Unwrap() error { return e.Err }

type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("device %s: %v", e.Op, e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }
