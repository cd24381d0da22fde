package testutil

import (
	"sync"

	"github.com/dkeye/peercall/internal/core"
)

// Relay records outbound messages and lets tests push inbound events.
type Relay struct {
	SendErr error

	events chan core.RelayEvent

	mu     sync.Mutex
	sent   []core.OutboundMessage
	closed bool
}

func NewRelay() *Relay {
	return &Relay{events: make(chan core.RelayEvent, 64)}
}

func (r *Relay) Events() <-chan core.RelayEvent { return r.events }

func (r *Relay) Send(m core.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return r.SendErr
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *Relay) Push(ev core.RelayEvent) { r.events <- ev }

func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	return nil
}

func (r *Relay) Sent() []core.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.OutboundMessage(nil), r.sent...)
}
