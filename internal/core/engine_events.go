package core

import "github.com/dkeye/peercall/internal/domain"

// EngineEvent is one of SignalingStateChanged, CandidateDiscovered,
// ICEStateChanged, StreamAdded or StreamRemoved.
type EngineEvent interface {
	engineEvent()
}

type ICEState int

const (
	ICENew ICEState = iota
	ICEChecking
	ICEConnected
	ICECompleted
	ICEDisconnected
	ICEFailed
	ICEClosed
)

func (s ICEState) String() string {
	switch s {
	case ICENew:
		return "new"
	case ICEChecking:
		return "checking"
	case ICEConnected:
		return "connected"
	case ICECompleted:
		return "completed"
	case ICEDisconnected:
		return "disconnected"
	case ICEFailed:
		return "failed"
	case ICEClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type SignalingStateChanged struct{ State string }

type CandidateDiscovered struct{ Candidate domain.Candidate }

type ICEStateChanged struct{ State ICEState }

type StreamAdded struct {
	StreamID string
	TrackID  string
	Kind     domain.MediaKind
}

type StreamRemoved struct {
	StreamID string
	TrackID  string
}

func (SignalingStateChanged) engineEvent() {}
func (CandidateDiscovered) engineEvent()   {}
func (ICEStateChanged) engineEvent()       {}
func (StreamAdded) engineEvent()           {}
func (StreamRemoved) engineEvent()         {}
