package domain

type ConnectionState int32

const (
	StateIdle ConnectionState = iota
	StateOfferCreated
	StateOfferSent
	StateAnswerCreated
	StateLocalSet
	StateRemoteSet
	StateNegotiating
	StateConnected
	StateFailed
	StateClosed
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateOfferCreated:  "offer-created",
	StateOfferSent:     "offer-sent",
	StateAnswerCreated: "answer-created",
	StateLocalSet:      "local-set",
	StateRemoteSet:     "remote-set",
	StateNegotiating:   "negotiating",
	StateConnected:     "connected",
	StateFailed:        "failed",
	StateClosed:        "closed",
}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s ConnectionState) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

type RelayStatus int32

const (
	RelayConnecting RelayStatus = iota
	RelayConnected
	RelayDisconnected
	RelayConnectError
	RelayError
)

func (s RelayStatus) String() string {
	switch s {
	case RelayConnecting:
		return "connecting"
	case RelayConnected:
		return "connected"
	case RelayDisconnected:
		return "disconnected"
	case RelayConnectError:
		return "connect-error"
	case RelayError:
		return "error"
	default:
		return "unknown"
	}
}
