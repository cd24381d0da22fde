package protocol

import (
	"fmt"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
)

// EncodeOutbound renders a client message as a frame.
func EncodeOutbound(m core.OutboundMessage) ([]byte, error) {
	switch m := m.(type) {
	case core.CreateID:
		return Encode(EventCreateID, CreateIDPayload{ID: string(m.ID)})
	case core.OfferCall:
		return Encode(EventOfferCall, CallPayload{FromID: string(m.From), ToID: string(m.To), SDP: m.SDP})
	case core.AnswerCall:
		return Encode(EventAnswerCall, CallPayload{FromID: string(m.From), ToID: string(m.To), SDP: m.SDP})
	case core.NewICE:
		return Encode(EventNewICE, NewICEPayload{
			ToID:          string(m.To),
			SDPMid:        m.Candidate.MediaLineID,
			SDPMLineIndex: m.Candidate.MediaLineIndex,
			SDP:           m.Candidate.Description,
		})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, m)
	}
}

// DecodeInbound turns a relay frame into an event for the orchestrator.
// Unknown fields are tolerated; missing required ones are not.
func DecodeInbound(frame []byte) (core.RelayEvent, error) {
	env, err := ParseEnvelope(frame)
	if err != nil {
		return nil, err
	}
	switch env.Event {
	case EventReceiveCall:
		var p ReceiveCallPayload
		if err := decode(env.Data, &p, false); err != nil {
			return nil, err
		}
		return core.CallReceived{From: domain.PeerID(p.FromID), SDP: p.SDP}, nil
	case EventReceiveAnswerCall:
		var p ReceiveAnswerPayload
		if err := decode(env.Data, &p, false); err != nil {
			return nil, err
		}
		return core.AnswerReceived{SDP: p.SDP}, nil
	case EventReceiveICE:
		var p ReceiveICEPayload
		if err := decode(env.Data, &p, false); err != nil {
			return nil, err
		}
		return core.CandidateReceived{Candidate: domain.Candidate{
			MediaLineID:    p.SDPMid,
			MediaLineIndex: p.SDPMLineIndex,
			Description:    p.SDP,
		}}, nil
	case EventError:
		var p ErrorPayload
		if err := decode(env.Data, &p, false); err != nil {
			return nil, err
		}
		return core.RelayFailure{Err: &domain.TransportError{Op: "relay", Err: fmt.Errorf("%s: %s", p.Code, p.Message)}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}
