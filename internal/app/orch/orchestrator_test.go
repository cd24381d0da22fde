package orch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/testutil"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	o       *Orchestrator
	relay   *testutil.Relay
	engines *testutil.Factory
}

func newFixture(local domain.PeerID) *fixture {
	f := &fixture{relay: testutil.NewRelay(), engines: &testutil.Factory{}}
	f.o = &Orchestrator{
		Local:   local,
		Relay:   f.relay,
		Engines: f.engines,
		Options: Options{StartAudio: true},
	}
	return f
}

func (f *fixture) state() domain.ConnectionState {
	sess, _ := f.o.current()
	if sess == nil {
		return domain.StateIdle
	}
	return sess.State()
}

func candidate(s string) domain.Candidate {
	return domain.Candidate{MediaLineID: "0", MediaLineIndex: 0, Description: s}
}

func TestCallEmitsOfferAndReachesOfferSent(t *testing.T) {
	f := newFixture("1001")

	require.NoError(t, f.o.Call(context.Background(), "2002"))

	eng := f.engines.Last()
	require.Equal(t, []core.OutboundMessage{
		core.OfferCall{From: "1001", To: "2002", SDP: eng.OfferSDP},
	}, f.relay.Sent())
	require.Equal(t, domain.StateOfferSent, f.state())
	require.Equal(t, domain.StateOfferSent, f.o.Status().Call)
	require.Equal(t, domain.PeerID("2002"), f.o.Status().Peer)
	require.True(t, eng.LocalTrack(domain.Audio).Enabled())
}

func TestAnswerThenDuplicateAnswer(t *testing.T) {
	f := newFixture("1001")
	ctx := context.Background()
	require.NoError(t, f.o.Call(ctx, "2002"))

	require.NoError(t, f.o.ReceiveAnswer(ctx, "v=0 answer"))
	require.Equal(t, domain.StateNegotiating, f.state())

	err := f.o.ReceiveAnswer(ctx, "v=0 answer")
	var ne *domain.NegotiationError
	require.ErrorAs(t, err, &ne)
	require.ErrorIs(t, err, domain.ErrWrongState)
	require.Equal(t, domain.StateNegotiating, f.state())
}

func TestAnswerWithoutSession(t *testing.T) {
	f := newFixture("1001")
	err := f.o.ReceiveAnswer(context.Background(), "v=0")
	require.ErrorIs(t, err, domain.ErrNoSession)
}

func TestCandidateBeforeAnswerIsBufferedThenApplied(t *testing.T) {
	f := newFixture("1001")
	ctx := context.Background()
	require.NoError(t, f.o.Call(ctx, "2002"))
	eng := f.engines.Last()

	c := candidate("candidate:1 1 udp 2122260223 10.0.0.2 50000 typ host")
	require.NoError(t, f.o.ReceiveCandidate(c))
	require.Empty(t, eng.Applied())
	sess, _ := f.o.current()
	require.Equal(t, 1, sess.PendingCandidates())

	require.NoError(t, f.o.ReceiveAnswer(ctx, "v=0 answer"))
	require.Equal(t, []domain.Candidate{c}, eng.Applied())
	require.Zero(t, sess.PendingCandidates())
}

func TestLocalCandidateDroppedUntilCorrelated(t *testing.T) {
	f := newFixture("2002")
	var release func()
	f.engines.Prepare = func(e *testutil.Engine) { release = e.HoldCalls() }

	done := make(chan error, 1)
	go func() { done <- f.o.ReceiveCall(context.Background(), "1001", "v=0 offer") }()
	require.Eventually(t, func() bool {
		e := f.engines.Last()
		return e != nil && len(e.Ops()) == 1
	}, time.Second, 5*time.Millisecond)
	eng := f.engines.Last()

	eng.Emit(core.CandidateDiscovered{Candidate: candidate("early")})
	require.Empty(t, f.relay.Sent())

	release()
	require.NoError(t, <-done)

	eng.Emit(core.CandidateDiscovered{Candidate: candidate("late")})
	sent := f.relay.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, core.AnswerCall{From: "2002", To: "1001", SDP: eng.AnswerSDP}, sent[0])
	require.Equal(t, core.NewICE{To: "1001", Candidate: candidate("late")}, sent[1])
}

func TestOutgoingCandidatesAreForwarded(t *testing.T) {
	f := newFixture("1001")
	require.NoError(t, f.o.Call(context.Background(), "2002"))
	f.engines.Last().Emit(core.CandidateDiscovered{Candidate: candidate("c1")})

	sent := f.relay.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, core.NewICE{To: "2002", Candidate: candidate("c1")}, sent[1])
}

func TestResponderAnswersExactlyOnce(t *testing.T) {
	f := newFixture("2002")
	require.NoError(t, f.o.ReceiveCall(context.Background(), "1001", "v=0 offer"))

	eng := f.engines.Last()
	require.Equal(t, []domain.SessionDescriptor{domain.NewOffer("v=0 offer")}, eng.Remote())
	require.Equal(t, []core.OutboundMessage{
		core.AnswerCall{From: "2002", To: "1001", SDP: eng.AnswerSDP},
	}, f.relay.Sent())
	require.Equal(t, domain.StateNegotiating, f.state())
}

func TestSecondIncomingCallIsRejected(t *testing.T) {
	f := newFixture("2002")
	ctx := context.Background()
	require.NoError(t, f.o.ReceiveCall(ctx, "1001", "v=0 offer"))

	err := f.o.ReceiveCall(ctx, "3003", "v=0 other")
	require.ErrorIs(t, err, domain.ErrCallActive)
	require.Len(t, f.engines.Engines(), 1)
	require.Len(t, f.relay.Sent(), 1)
	require.Equal(t, domain.PeerID("1001"), f.o.Status().Peer)
}

func TestCallAfterFailureReplacesSession(t *testing.T) {
	f := newFixture("1001")
	ctx := context.Background()
	require.NoError(t, f.o.Call(ctx, "2002"))
	first := f.engines.Last()

	first.Emit(core.ICEStateChanged{State: core.ICEFailed})
	require.Equal(t, domain.StateFailed, f.state())
	require.Equal(t, 1, first.Closed())

	require.NoError(t, f.o.ReceiveCall(ctx, "3003", "v=0 offer"))
	require.Len(t, f.engines.Engines(), 2)

	// the stale engine no longer reaches the relay
	before := len(f.relay.Sent())
	first.Emit(core.CandidateDiscovered{Candidate: candidate("stale")})
	require.Len(t, f.relay.Sent(), before)
}

func TestEarlyCandidatesHandedToNextSession(t *testing.T) {
	f := newFixture("2002")
	require.NoError(t, f.o.ReceiveCandidate(candidate("a")))
	require.NoError(t, f.o.ReceiveCandidate(candidate("b")))

	require.NoError(t, f.o.ReceiveCall(context.Background(), "1001", "v=0 offer"))
	require.Equal(t, []domain.Candidate{candidate("a"), candidate("b")}, f.engines.Last().Applied())
}

func TestCandidatesOfEndedCallNotHandedToNextCall(t *testing.T) {
	f := newFixture("1001")
	ctx := context.Background()
	require.NoError(t, f.o.Call(ctx, "2002"))
	f.engines.Last().Emit(core.ICEStateChanged{State: core.ICEFailed})
	require.Equal(t, domain.StateFailed, f.state())

	require.NoError(t, f.o.ReceiveCandidate(candidate("stale")))

	require.NoError(t, f.o.ReceiveCall(ctx, "3003", "v=0 offer"))
	require.Len(t, f.engines.Engines(), 2)
	require.Empty(t, f.engines.Last().Applied())
}

func TestICEConnectedMovesToConnected(t *testing.T) {
	f := newFixture("1001")
	ctx := context.Background()
	require.NoError(t, f.o.Call(ctx, "2002"))
	require.NoError(t, f.o.ReceiveAnswer(ctx, "v=0 answer"))

	f.engines.Last().Emit(core.ICEStateChanged{State: core.ICEConnected})
	require.Equal(t, domain.StateConnected, f.state())
	require.Equal(t, domain.StateConnected, f.o.Status().Call)
}

func TestHangupReleasesBlockedCall(t *testing.T) {
	f := newFixture("1001")
	f.engines.Prepare = func(e *testutil.Engine) { e.HoldCalls() }

	done := make(chan error, 1)
	go func() { done <- f.o.Call(context.Background(), "2002") }()
	require.Eventually(t, func() bool {
		e := f.engines.Last()
		return e != nil && len(e.Ops()) == 1
	}, time.Second, 5*time.Millisecond)

	f.o.Hangup()
	select {
	case err := <-done:
		require.ErrorIs(t, err, domain.ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("call still blocked")
	}
	require.Empty(t, f.relay.Sent())
	require.Equal(t, domain.StateClosed, f.state())
}

func TestSendFailureFailsCall(t *testing.T) {
	f := newFixture("1001")
	f.relay.SendErr = context.DeadlineExceeded

	err := f.o.Call(context.Background(), "2002")
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, domain.StateFailed, f.state())
}

func TestMediaTogglesNeedLiveSession(t *testing.T) {
	f := newFixture("1001")
	require.ErrorIs(t, f.o.EnableAudio(true), domain.ErrNoSession)

	require.NoError(t, f.o.Call(context.Background(), "2002"))
	require.NoError(t, f.o.EnableAudio(false))
	require.False(t, f.engines.Last().LocalTrack(domain.Audio).Enabled())
	require.NoError(t, f.o.EnableVideo(true))
	require.NoError(t, f.o.SwitchCamera())
}

func TestRunDrivesSignaling(t *testing.T) {
	f := newFixture("1001")
	var mu sync.Mutex
	var statuses []Status
	f.o.Options.AutoCall = "2002"
	f.o.Options.OnStatus = func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- f.o.Run(ctx) }()

	f.relay.Push(core.RelayConnected{})
	require.Eventually(t, func() bool { return f.state() == domain.StateOfferSent }, time.Second, 5*time.Millisecond)

	sent := f.relay.Sent()
	require.Equal(t, core.CreateID{ID: "1001"}, sent[0])
	require.IsType(t, core.OfferCall{}, sent[1])

	f.relay.Push(core.CandidateReceived{Candidate: candidate("r1")})
	f.relay.Push(core.AnswerReceived{SDP: "v=0 answer"})
	require.Eventually(t, func() bool {
		return len(f.engines.Last().Applied()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, domain.StateNegotiating, f.state())

	f.relay.Push(core.RelayDisconnected{})
	require.Eventually(t, func() bool { return f.state() == domain.StateClosed }, time.Second, 5*time.Millisecond)
	require.Equal(t, domain.RelayDisconnected, f.o.Status().Relay)

	require.NoError(t, f.relay.Close())
	select {
	case err := <-errc:
		require.ErrorIs(t, err, domain.ErrRelayDisconnected)
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, statuses)
	require.Equal(t, domain.RelayConnecting, statuses[0].Relay)
}

func TestRunReportsHandlerErrors(t *testing.T) {
	f := newFixture("1001")
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.o.Run(ctx) }()

	f.relay.Push(core.AnswerReceived{SDP: "v=0 stray"})
	require.Eventually(t, func() bool {
		return f.o.Status().Err != nil
	}, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, f.o.Status().Err, domain.ErrNoSession)

	cancel()
	require.NoError(t, <-errc)
}

func TestPanicsInObserversAreContained(t *testing.T) {
	f := newFixture("1001")
	f.o.Options.OnStream = func(core.EngineEvent) { panic("renderer exploded") }
	require.NoError(t, f.o.Call(context.Background(), "2002"))

	require.NotPanics(t, func() {
		f.engines.Last().Emit(core.StreamAdded{StreamID: "s", TrackID: "t", Kind: domain.Audio})
	})
	require.Error(t, f.o.Status().Err)
}

func TestRelayFailureUpdatesStatus(t *testing.T) {
	f := newFixture("1001")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.o.Run(ctx) }()

	f.relay.Push(core.RelayFailure{Err: &domain.TransportError{Op: "read", Err: context.Canceled}})
	require.Eventually(t, func() bool { return f.o.Status().Relay == domain.RelayError }, time.Second, 5*time.Millisecond)
}

func TestDisconnectReachesHangupWhileWorkerIsStuck(t *testing.T) {
	f := newFixture("2002")
	f.engines.Prepare = func(e *testutil.Engine) { e.HoldCalls() }
	var mu sync.Mutex
	var dropped int
	f.o.Options.OnStatus = func(s Status) {
		if errors.Is(s.Err, ErrBacklogFull) {
			mu.Lock()
			dropped++
			mu.Unlock()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.o.Run(ctx) }()

	f.relay.Push(core.CallReceived{From: "1001", SDP: "v=0 offer"})
	require.Eventually(t, func() bool { return f.engines.Last() != nil }, time.Second, 5*time.Millisecond)

	for i := 0; i < defaultQueueSize+6; i++ {
		f.relay.Push(core.CandidateReceived{Candidate: candidate("c")})
	}
	f.relay.Push(core.RelayDisconnected{})

	require.Eventually(t, func() bool { return f.state() == domain.StateClosed }, time.Second, 5*time.Millisecond)
	require.Equal(t, domain.RelayDisconnected, f.o.Status().Relay)
	mu.Lock()
	defer mu.Unlock()
	require.Positive(t, dropped)
}
