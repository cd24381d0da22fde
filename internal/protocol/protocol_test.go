package protocol

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestEncodeOfferCallWireShape(t *testing.T) {
	frame, err := EncodeOutbound(core.OfferCall{From: "1001", To: "2002", SDP: "v=0"})
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"offer-call","data":{"from_id":"1001","to_id":"2002","sdp":"v=0"}}`, string(frame))
}

func TestEncodeNewICEWireShape(t *testing.T) {
	frame, err := EncodeOutbound(core.NewICE{To: "2002", Candidate: domain.Candidate{
		MediaLineID: "0", MediaLineIndex: 0, Description: "candidate:1 1 udp 1 10.0.0.1 5000 typ host",
	}})
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"new-ice","data":{"to_id":"2002","sdpMid":"0","sdpMLineIndex":0,"sdp":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}}`, string(frame))
}

func TestRouteRewritesEvents(t *testing.T) {
	cases := []struct {
		name  string
		in    core.OutboundMessage
		event string
		data  string
	}{
		{"offer", core.OfferCall{From: "1001", To: "2002", SDP: "o"}, EventReceiveCall, `{"from_id":"1001","sdp":"o"}`},
		{"answer", core.AnswerCall{From: "2002", To: "1001", SDP: "a"}, EventReceiveAnswerCall, `{"sdp":"a"}`},
		{"ice", core.NewICE{To: "1001", Candidate: domain.Candidate{MediaLineID: "1", MediaLineIndex: 1, Description: "c"}},
			EventReceiveICE, `{"sdpMid":"1","sdpMLineIndex":1,"sdp":"c"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := EncodeOutbound(tc.in)
			require.NoError(t, err)
			env, err := ParseEnvelope(frame)
			require.NoError(t, err)

			r, err := Route(env)
			require.NoError(t, err)
			require.Equal(t, tc.event, r.Event)

			var out Envelope
			require.NoError(t, json.Unmarshal(r.Frame, &out))
			require.Equal(t, tc.event, out.Event)
			require.JSONEq(t, tc.data, string(out.Data))
		})
	}
}

func TestRouteRejectsUnknownFields(t *testing.T) {
	env := Envelope{Event: EventOfferCall, Data: json.RawMessage(`{"from_id":"1","to_id":"2","sdp":"x","extra":1}`)}
	_, err := Route(env)
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestRouteRejectsMissingTarget(t *testing.T) {
	env := Envelope{Event: EventNewICE, Data: json.RawMessage(`{"sdpMid":"0","sdpMLineIndex":0,"sdp":"c"}`)}
	_, err := Route(env)
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestRouteRejectsOversizedMediaLineIndex(t *testing.T) {
	env := Envelope{Event: EventNewICE, Data: json.RawMessage(`{"to_id":"2","sdpMid":"0","sdpMLineIndex":65536,"sdp":"c"}`)}
	_, err := Route(env)
	require.ErrorIs(t, err, ErrInvalidPayload)

	env.Data = json.RawMessage(`{"to_id":"2","sdpMid":"0","sdpMLineIndex":65535,"sdp":"c"}`)
	_, err = Route(env)
	require.NoError(t, err)
}

func TestDecodeInbound(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"event":"receive-call","data":{"from_id":"1001","sdp":"o"}}`))
	require.NoError(t, err)
	require.Equal(t, core.CallReceived{From: "1001", SDP: "o"}, ev)

	ev, err = DecodeInbound([]byte(`{"event":"receive-answer-call","data":{"sdp":"a","from_id":"2002"}}`))
	require.NoError(t, err)
	require.Equal(t, core.AnswerReceived{SDP: "a"}, ev)

	ev, err = DecodeInbound([]byte(`{"event":"receive-ice","data":{"sdpMid":"0","sdpMLineIndex":0,"sdp":"c"}}`))
	require.NoError(t, err)
	require.Equal(t, core.CandidateReceived{Candidate: domain.Candidate{MediaLineID: "0", Description: "c"}}, ev)
}

func TestDecodeInboundErrorReply(t *testing.T) {
	ev, err := DecodeInbound(ErrorFrame(CodeUnknownPeer, "2002"))
	require.NoError(t, err)
	f, ok := ev.(core.RelayFailure)
	require.True(t, ok)
	var te *domain.TransportError
	require.ErrorAs(t, f.Err, &te)
}

func TestDecodeInboundMalformed(t *testing.T) {
	for _, frame := range []string{
		`not json`,
		`{"data":{}}`,
		`{"event":"receive-call","data":{"sdp":"o"}}`,
		`{"event":"receive-ice","data":{"sdpMid":"0","sdpMLineIndex":-1,"sdp":"c"}}`,
		`{"event":"receive-ice","data":{"sdpMid":"0","sdpMLineIndex":70000,"sdp":"c"}}`,
		`{"event":"receive-answer-call"}`,
	} {
		_, err := DecodeInbound([]byte(frame))
		require.ErrorIs(t, err, ErrInvalidPayload, frame)
	}

	_, err := DecodeInbound([]byte(`{"event":"whatever","data":{}}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodeCreateID(t *testing.T) {
	id, err := DecodeCreateID(Envelope{Event: EventCreateID, Data: json.RawMessage(`{"id":"1001"}`)})
	require.NoError(t, err)
	require.Equal(t, domain.PeerID("1001"), id)

	_, err = DecodeCreateID(Envelope{Event: EventCreateID, Data: json.RawMessage(`{"id":""}`)})
	require.ErrorIs(t, err, ErrInvalidPayload)
}
