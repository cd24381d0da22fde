package relayclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	router "github.com/dkeye/peercall/internal/adapters/http"
	"github.com/dkeye/peercall/internal/adapters/signal"
	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, ch <-chan core.RelayEvent) core.RelayEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no relay event")
		return nil
	}
}

func closedWithin(t *testing.T, ch <-chan core.RelayEvent) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events not closed")
		}
	}
}

func TestHubRoutesSignaling(t *testing.T) {
	hub := NewHub()
	a, b := hub.Connect(), hub.Connect()
	defer a.Close()
	defer b.Close()
	require.IsType(t, core.RelayConnected{}, next(t, a.Events()))
	require.IsType(t, core.RelayConnected{}, next(t, b.Events()))

	require.NoError(t, a.Send(core.CreateID{ID: "1"}))
	require.NoError(t, b.Send(core.CreateID{ID: "2"}))
	require.Equal(t, []domain.PeerID{"1", "2"}, hub.Peers())

	require.NoError(t, a.Send(core.OfferCall{From: "1", To: "2", SDP: "v=0 offer"}))
	require.Equal(t, core.CallReceived{From: "1", SDP: "v=0 offer"}, next(t, b.Events()))

	require.NoError(t, b.Send(core.AnswerCall{From: "2", To: "1", SDP: "v=0 answer"}))
	require.Equal(t, core.AnswerReceived{SDP: "v=0 answer"}, next(t, a.Events()))

	cand := domain.Candidate{MediaLineID: "0", MediaLineIndex: 0, Description: "candidate:1 1 udp 1 10.0.0.1 5000 typ host"}
	require.NoError(t, a.Send(core.NewICE{To: "2", Candidate: cand}))
	require.Equal(t, core.CandidateReceived{Candidate: cand}, next(t, b.Events()))
}

func TestHubErrors(t *testing.T) {
	hub := NewHub()
	a := hub.Connect()
	next(t, a.Events())

	require.NoError(t, a.Send(core.OfferCall{From: "1", To: "2", SDP: "v=0"}))
	f, ok := next(t, a.Events()).(core.RelayFailure)
	require.True(t, ok)
	require.ErrorContains(t, f.Err, protocol.CodeNotRegistered)

	require.NoError(t, a.Send(core.CreateID{ID: "1"}))
	require.NoError(t, a.Send(core.OfferCall{From: "1", To: "2", SDP: "v=0"}))
	f, ok = next(t, a.Events()).(core.RelayFailure)
	require.True(t, ok)
	require.ErrorContains(t, f.Err, protocol.CodeUnknownPeer)

	require.True(t, hub.Drop("1"))
	require.IsType(t, core.RelayDisconnected{}, next(t, a.Events()))
	closedWithin(t, a.Events())

	err := a.Send(core.CreateID{ID: "1"})
	require.ErrorIs(t, err, domain.ErrRelayDisconnected)
	require.False(t, hub.Drop("1"))
}

func newRelay(t *testing.T) (*httptest.Server, *app.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := app.NewRegistry()
	ctl := signal.NewSignalWSController(reg, nil, signal.Options{})
	r := router.SetupRouter(context.Background(), &config.Config{Mode: "test"}, reg, ctl)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, reg
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	c := New(Options{URL: url})
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Connect(context.Background()))
	require.IsType(t, core.RelayConnected{}, next(t, c.Events()))
	return c
}

func TestClientThroughRelay(t *testing.T) {
	srv, reg := newRelay(t)
	url := wsURL(srv, "/api/ws/signal")
	a, b := dial(t, url), dial(t, url)

	require.NoError(t, a.Send(core.CreateID{ID: "1"}))
	require.NoError(t, b.Send(core.CreateID{ID: "2"}))
	require.Eventually(t, func() bool { return len(reg.List()) == 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Send(core.OfferCall{From: "1", To: "2", SDP: "v=0 offer"}))
	require.Equal(t, core.CallReceived{From: "1", SDP: "v=0 offer"}, next(t, b.Events()))

	require.NoError(t, a.Send(core.OfferCall{From: "1", To: "9", SDP: "v=0 offer"}))
	f, ok := next(t, a.Events()).(core.RelayFailure)
	require.True(t, ok)
	require.ErrorContains(t, f.Err, protocol.CodeUnknownPeer)

	require.NoError(t, b.Close())
	closedWithin(t, b.Events())
	require.Eventually(t, func() bool { return len(reg.List()) == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestClientMalformedFrameKeepsReading(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		frame, _ := protocol.Encode(protocol.EventReceiveAnswerCall, protocol.ReceiveAnswerPayload{SDP: "v=0"})
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := dial(t, wsURL(srv, "/"))
	f, ok := next(t, c.Events()).(core.RelayFailure)
	require.True(t, ok)
	var terr *domain.TransportError
	require.ErrorAs(t, f.Err, &terr)
	require.Equal(t, core.AnswerReceived{SDP: "v=0"}, next(t, c.Events()))
}

func TestClientServerGone(t *testing.T) {
	srv, reg := newRelay(t)
	c := dial(t, wsURL(srv, "/api/ws/signal"))
	require.NoError(t, c.Send(core.CreateID{ID: "1"}))
	require.Eventually(t, func() bool { return len(reg.List()) == 1 }, 5*time.Second, 10*time.Millisecond)
	require.True(t, reg.Cancel("1"))

	d, ok := next(t, c.Events()).(core.RelayDisconnected)
	require.True(t, ok)
	require.Error(t, d.Err)
	closedWithin(t, c.Events())
}

func TestClientConnectError(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/nowhere"})
	err := c.Connect(context.Background())
	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	require.IsType(t, core.RelayConnectError{}, next(t, c.Events()))

	require.ErrorIs(t, c.Send(core.CreateID{ID: "1"}), domain.ErrRelayDisconnected)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	closedWithin(t, c.Events())
}
