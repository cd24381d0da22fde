package domain

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPeerIDIsValidNumber(t *testing.T) {
	for range 100 {
		id := NewPeerID()
		require.NoError(t, ValidatePeerID(id))
		n, err := strconv.Atoi(id.String())
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, maxGeneratedID)
	}
}

func TestValidatePeerID(t *testing.T) {
	require.ErrorIs(t, ValidatePeerID(""), ErrPeerIDEmpty)
	require.ErrorIs(t, ValidatePeerID(PeerID(strings.Repeat("x", MaxPeerIDLen+1))), ErrPeerIDTooLong)
	require.NoError(t, ValidatePeerID(PeerID(strings.Repeat("x", MaxPeerIDLen))))
}

func TestTerminalStates(t *testing.T) {
	for s := StateIdle; s <= StateClosed; s++ {
		require.Equal(t, s == StateFailed || s == StateClosed, s.Terminal(), s.String())
	}
	require.Equal(t, "negotiating", StateNegotiating.String())
	require.Equal(t, "unknown", ConnectionState(99).String())
	require.Equal(t, "connect-error", RelayConnectError.String())
}

func TestTypedErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	require.ErrorIs(t, &TransportError{Op: "send", Err: cause}, cause)
	require.ErrorIs(t, &NegotiationError{Op: "set-remote", Err: ErrWrongState}, ErrWrongState)
	require.ErrorIs(t, &DeviceError{Op: "open", Err: ErrNoCamera}, ErrNoCamera)

	ce := &CandidateError{Candidate: Candidate{Description: "candidate:1"}, Err: cause}
	require.ErrorIs(t, ce, cause)
	require.Contains(t, ce.Error(), "boom")
}

func TestDescriptors(t *testing.T) {
	require.Equal(t, SessionDescriptor{Type: SDPOffer, SDP: "v=0"}, NewOffer("v=0"))
	require.Equal(t, "answer", NewAnswer("v=0").Type.String())
	require.Equal(t, "video", Video.String())
	require.Equal(t, "incoming", Incoming.String())
}
