package core

// Frame is a raw text payload as written to the socket.
type Frame []byte

// SignalConnection is the relay server's handle on one connected peer.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
