package relayclient

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrHubClosed = errors.New("hub closed")

// Hub is an in-process relay. Frames go through the same codec and routing
// as the websocket relay.
type Hub struct {
	mu    sync.Mutex
	peers map[domain.PeerID]*LocalTransport
}

func NewHub() *Hub {
	return &Hub{peers: make(map[domain.PeerID]*LocalTransport)}
}

// Connect returns a transport whose first event is RelayConnected.
func (h *Hub) Connect() *LocalTransport {
	t := &LocalTransport{
		hub:    h,
		events: make(chan core.RelayEvent, 256),
	}
	t.push(core.RelayConnected{})
	return t
}

// Drop disconnects the transport registered as id.
func (h *Hub) Drop(id domain.PeerID) bool {
	h.mu.Lock()
	t, ok := h.peers[id]
	h.mu.Unlock()
	if !ok {
		return false
	}
	t.push(core.RelayDisconnected{Err: &domain.TransportError{Op: "hub", Err: ErrHubClosed}})
	_ = t.Close()
	return true
}

// Peers returns the registered ids, sorted.
func (h *Hub) Peers() []domain.PeerID {
	h.mu.Lock()
	out := make([]domain.PeerID, 0, len(h.peers))
	for id := range h.peers {
		out = append(out, id)
	}
	h.mu.Unlock()
	slices.Sort(out)
	return out
}

func (h *Hub) bind(id domain.PeerID, t *LocalTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[id] = t
}

func (h *Hub) unbind(id domain.PeerID, t *LocalTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[id] == t {
		delete(h.peers, id)
	}
}

func (h *Hub) lookup(id domain.PeerID) (*LocalTransport, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.peers[id]
	return t, ok
}

// LocalTransport is one peer's connection to a Hub.
type LocalTransport struct {
	hub    *Hub
	events chan core.RelayEvent

	mu     sync.Mutex
	id     domain.PeerID
	closed bool
}

var _ core.RelayTransport = (*LocalTransport)(nil)

func (t *LocalTransport) Events() <-chan core.RelayEvent { return t.events }

func (t *LocalTransport) Send(m core.OutboundMessage) error {
	frame, err := protocol.EncodeOutbound(m)
	if err != nil {
		return &domain.TransportError{Op: "encode", Err: err}
	}
	t.mu.Lock()
	closed, id := t.closed, t.id
	t.mu.Unlock()
	if closed {
		return &domain.TransportError{Op: "send", Err: domain.ErrRelayDisconnected}
	}

	env, err := protocol.ParseEnvelope(frame)
	if err != nil {
		return &domain.TransportError{Op: "send", Err: err}
	}
	if env.Event == protocol.EventCreateID {
		newID, err := protocol.DecodeCreateID(env)
		if err != nil {
			return &domain.TransportError{Op: "send", Err: err}
		}
		t.mu.Lock()
		t.id = newID
		t.mu.Unlock()
		if id != "" && id != newID {
			t.hub.unbind(id, t)
		}
		t.hub.bind(newID, t)
		return nil
	}

	if id == "" {
		t.reply(protocol.CodeNotRegistered, env.Event)
		return nil
	}
	routed, err := protocol.Route(env)
	if err != nil {
		return &domain.TransportError{Op: "send", Err: err}
	}
	target, ok := t.hub.lookup(routed.To)
	if !ok {
		t.reply(protocol.CodeUnknownPeer, string(routed.To))
		return nil
	}
	ev, err := protocol.DecodeInbound(routed.Frame)
	if err != nil {
		return &domain.TransportError{Op: "send", Err: err}
	}
	target.push(ev)
	return nil
}

// reply delivers a relay error to the sender, like the websocket relay does.
func (t *LocalTransport) reply(code, message string) {
	ev, err := protocol.DecodeInbound(protocol.ErrorFrame(code, message))
	if err != nil {
		t.push(core.RelayFailure{Err: &domain.TransportError{Op: "relay", Err: fmt.Errorf("%s: %s", code, message)}})
		return
	}
	t.push(ev)
}

func (t *LocalTransport) push(ev core.RelayEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.events <- ev:
	default:
		log.Warn().Str("module", "relayclient.hub").Str("peer", string(t.id)).Msgf("dropped %T", ev)
	}
}

func (t *LocalTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	id := t.id
	close(t.events)
	t.mu.Unlock()

	if id != "" {
		t.hub.unbind(id, t)
	}
	return nil
}
