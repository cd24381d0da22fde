package app

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

type peerEntry struct {
	Token  string
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry maps registered peer ids to their relay connections.
type Registry struct {
	mu    sync.RWMutex
	peers map[domain.PeerID]*peerEntry
}

func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[domain.PeerID]*peerEntry),
	}
}

// Bind registers id for conn. An older binding for the same id is replaced
// and its connection canceled.
func (r *Registry) Bind(id domain.PeerID, token string, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	old := r.peers[id]
	r.peers[id] = &peerEntry{Token: token, Conn: conn, Cancel: cancel}
	r.mu.Unlock()

	if old != nil && old.Conn != conn {
		log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("replaced binding")
		if old.Cancel != nil {
			old.Cancel()
		}
		return
	}
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Str("token", token).Msg("bound peer")
}

func (r *Registry) Lookup(id domain.PeerID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.peers[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

// Unbind removes id only while it is still bound to conn.
func (r *Registry) Unbind(id domain.PeerID, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[id]
	if !ok || e.Conn != conn {
		return false
	}
	delete(r.peers, id)
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("unbind peer")
	return true
}

// List returns the registered ids, sorted.
func (r *Registry) List() []domain.PeerID {
	r.mu.RLock()
	out := make([]domain.PeerID, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	r.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Cancel tears down the connection bound to id.
func (r *Registry) Cancel(id domain.PeerID) bool {
	r.mu.RLock()
	e, ok := r.peers[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("canceled peer")
	return true
}
