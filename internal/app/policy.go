package app

import "github.com/dkeye/peercall/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropMessage
	KickPeer
)

func (a BackpressureAction) String() string {
	switch a {
	case DropMessage:
		return "drop"
	case KickPeer:
		return "kick"
	default:
		return "none"
	}
}

// Policy decides what happens when a target's send queue is full.
type Policy interface {
	OnBackPressure(target domain.PeerID, event string) BackpressureAction
}

// SimplePolicy drops the frame. Kick makes a slow peer reconnect instead.
type SimplePolicy struct {
	Kick bool
}

func (p SimplePolicy) OnBackPressure(domain.PeerID, string) BackpressureAction {
	if p.Kick {
		return KickPeer
	}
	return DropMessage
}
