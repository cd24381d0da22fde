// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"
	"math/rand/v2"
	"strconv"
)

const (
	MaxPeerIDLen = 36
	// peer ids handed out by NewPeerID stay below this bound
	maxGeneratedID = 32767
)

var (
	ErrPeerIDEmpty   = errors.New("peer id empty")
	ErrPeerIDTooLong = errors.New("peer id too long")
)

// PeerID identifies a party on the relay. Opaque and immutable.
type PeerID string

func (id PeerID) String() string { return string(id) }

// NewPeerID returns a short random numeric id, easy to read out to the other side.
func NewPeerID() PeerID {
	return PeerID(strconv.Itoa(rand.IntN(maxGeneratedID)))
}

func ValidatePeerID(id PeerID) error {
	if len(id) == 0 {
		return ErrPeerIDEmpty
	}
	if len(id) > MaxPeerIDLen {
		return ErrPeerIDTooLong
	}
	return nil
}

type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return "unknown"
	}
}

// PendingCall is the correlation between the local session and the remote party.
type PendingCall struct {
	Peer      PeerID
	Direction Direction
}
