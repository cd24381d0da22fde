// Package protocol is the relay wire format: a JSON envelope
// {"event": name, "data": payload} per websocket text frame.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	// client -> relay
	EventCreateID   = "create-id"
	EventOfferCall  = "offer-call"
	EventAnswerCall = "answer-call"
	EventNewICE     = "new-ice"

	// relay -> client
	EventReceiveCall       = "receive-call"
	EventReceiveAnswerCall = "receive-answer-call"
	EventReceiveICE        = "receive-ice"
	EventError             = "error"
)

const (
	maxIDLen  = 36
	maxSDPLen = 64 * 1024
)

// Error codes carried by EventError.
const (
	CodeBadPayload    = "bad_payload"
	CodeUnknownEvent  = "unknown_event"
	CodeUnknownPeer   = "unknown_peer"
	CodeRateLimited   = "rate_limited"
	CodeNotRegistered = "not_registered"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type CreateIDPayload struct {
	ID string `json:"id"`
}

type CallPayload struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	SDP    string `json:"sdp"`
}

type NewICEPayload struct {
	ToID          string `json:"to_id"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	SDP           string `json:"sdp"`
}

type ReceiveCallPayload struct {
	FromID string `json:"from_id"`
	SDP    string `json:"sdp"`
}

type ReceiveAnswerPayload struct {
	SDP string `json:"sdp"`
}

type ReceiveICEPayload struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	SDP           string `json:"sdp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (p CreateIDPayload) validate() error { return validateID("id", p.ID) }

func (p CallPayload) validate() error {
	if err := validateID("from_id", p.FromID); err != nil {
		return err
	}
	if err := validateID("to_id", p.ToID); err != nil {
		return err
	}
	return validateSDP(p.SDP)
}

func (p NewICEPayload) validate() error {
	if err := validateID("to_id", p.ToID); err != nil {
		return err
	}
	return validateCandidate(p.SDPMLineIndex, p.SDP)
}

func (p ReceiveCallPayload) validate() error {
	if err := validateID("from_id", p.FromID); err != nil {
		return err
	}
	return validateSDP(p.SDP)
}

func (p ReceiveAnswerPayload) validate() error { return validateSDP(p.SDP) }

func (p ReceiveICEPayload) validate() error { return validateCandidate(p.SDPMLineIndex, p.SDP) }

func (p ErrorPayload) validate() error {
	if p.Code == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidPayload)
	}
	return nil
}

func validateID(field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalidPayload, field)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%w: %s too long", ErrInvalidPayload, field)
	}
	return nil
}

func validateSDP(sdp string) error {
	if sdp == "" {
		return fmt.Errorf("%w: missing sdp", ErrInvalidPayload)
	}
	if len(sdp) > maxSDPLen {
		return fmt.Errorf("%w: sdp too large", ErrInvalidPayload)
	}
	return nil
}

func validateCandidate(mline int, sdp string) error {
	if mline < 0 || mline > math.MaxUint16 {
		return fmt.Errorf("%w: sdpMLineIndex %d out of range", ErrInvalidPayload, mline)
	}
	if sdp == "" {
		return fmt.Errorf("%w: missing candidate", ErrInvalidPayload)
	}
	return nil
}

type validator interface{ validate() error }

// Encode wraps payload into an envelope.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// ParseEnvelope decodes the outer envelope only.
func ParseEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrInvalidPayload)
	}
	return env, nil
}

// decode unmarshals data into v and validates it. strict rejects unknown fields.
func decode(data json.RawMessage, v validator, strict bool) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v.validate()
}
