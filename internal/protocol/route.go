package protocol

import (
	"fmt"

	"github.com/dkeye/peercall/internal/domain"
)

// Routed is a frame ready to be written to the connection of To.
type Routed struct {
	Event string
	To    domain.PeerID
	Frame []byte
}

// DecodeCreateID validates a registration request.
func DecodeCreateID(env Envelope) (domain.PeerID, error) {
	var p CreateIDPayload
	if err := decode(env.Data, &p, true); err != nil {
		return "", err
	}
	return domain.PeerID(p.ID), nil
}

// Route maps a client envelope to the relay envelope its target receives:
// offer-call -> receive-call, answer-call -> receive-answer-call, new-ice -> receive-ice.
func Route(env Envelope) (Routed, error) {
	switch env.Event {
	case EventOfferCall:
		var p CallPayload
		if err := decode(env.Data, &p, true); err != nil {
			return Routed{}, err
		}
		return routed(EventReceiveCall, p.ToID, ReceiveCallPayload{FromID: p.FromID, SDP: p.SDP})
	case EventAnswerCall:
		var p CallPayload
		if err := decode(env.Data, &p, true); err != nil {
			return Routed{}, err
		}
		return routed(EventReceiveAnswerCall, p.ToID, ReceiveAnswerPayload{SDP: p.SDP})
	case EventNewICE:
		var p NewICEPayload
		if err := decode(env.Data, &p, true); err != nil {
			return Routed{}, err
		}
		return routed(EventReceiveICE, p.ToID, ReceiveICEPayload{
			SDPMid:        p.SDPMid,
			SDPMLineIndex: p.SDPMLineIndex,
			SDP:           p.SDP,
		})
	default:
		return Routed{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func routed(event, to string, payload any) (Routed, error) {
	frame, err := Encode(event, payload)
	if err != nil {
		return Routed{}, err
	}
	return Routed{Event: event, To: domain.PeerID(to), Frame: frame}, nil
}

// ErrorFrame builds the relay's error reply.
func ErrorFrame(code, message string) []byte {
	frame, _ := Encode(EventError, ErrorPayload{Code: code, Message: message})
	return frame
}
