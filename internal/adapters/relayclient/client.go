// Package relayclient connects the orchestrator to the signaling relay.
package relayclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("send queue full")

const (
	writeWait     = 5 * time.Second
	eventsBacklog = 64
)

type Options struct {
	URL        string
	Header     http.Header
	Dialer     *websocket.Dialer
	SendQueue  int
	PingPeriod time.Duration
	ReadLimit  int64
	Logger     *zerolog.Logger
}

// Client is a websocket RelayTransport. Events is closed once the
// connection ends or Close is called.
type Client struct {
	opts   Options
	logger zerolog.Logger

	events chan core.RelayEvent
	send   chan []byte
	done   chan struct{}

	mu           sync.RWMutex
	conn         *websocket.Conn
	started      bool
	closed       bool
	eventsClosed bool
	closeOnce    sync.Once
}

var _ core.RelayTransport = (*Client)(nil)

func New(opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 32
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 65536
	}
	logger := log.With().Str("module", "relayclient").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		opts:   opts,
		logger: logger,
		events: make(chan core.RelayEvent, eventsBacklog),
		send:   make(chan []byte, opts.SendQueue),
		done:   make(chan struct{}),
	}
}

func (c *Client) Events() <-chan core.RelayEvent { return c.events }

// Connect dials the relay and starts the pumps. The outcome is also
// reported as RelayConnected or RelayConnectError.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &domain.TransportError{Op: "dial", Err: domain.ErrRelayDisconnected}
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.logger.Info().Str("url", c.opts.URL).Msg("dialing relay")
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if err != nil {
		terr := &domain.TransportError{Op: "dial", Err: err}
		c.emit(core.RelayConnectError{Err: terr})
		return terr
	}

	c.mu.Lock()
	if c.closed || c.started {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.started = true
	c.mu.Unlock()

	c.emit(core.RelayConnected{})
	stop := make(chan struct{})
	go c.writePump(conn, stop)
	go c.readPump(conn, stop)
	return nil
}

func (c *Client) Send(m core.OutboundMessage) error {
	frame, err := protocol.EncodeOutbound(m)
	if err != nil {
		return &domain.TransportError{Op: "encode", Err: err}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.conn == nil {
		return &domain.TransportError{Op: "send", Err: domain.ErrRelayDisconnected}
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return &domain.TransportError{Op: "send", Err: ErrBackpressure}
	}
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		// release a blocked emit before taking the lock
		close(c.done)

		c.mu.Lock()
		c.closed = true
		conn := c.conn
		started := c.started
		c.mu.Unlock()

		if conn != nil {
			_ = conn.Close()
		}
		if !started {
			c.closeEvents()
		}
		c.logger.Info().Msg("relay client closed")
	})
	return nil
}

func (c *Client) readPump(conn *websocket.Conn, stop chan struct{}) {
	var cause error
	defer func() {
		close(stop)
		_ = conn.Close()
		c.emit(core.RelayDisconnected{Err: cause})
		c.closeEvents()
	}()

	pongWait := c.opts.PingPeriod * 10 / 9
	conn.SetReadLimit(c.opts.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				cause = &domain.TransportError{Op: "read", Err: err}
				c.logger.Warn().Err(err).Msg("relay read")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		ev, err := protocol.DecodeInbound(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("malformed relay frame")
			c.emit(core.RelayFailure{Err: &domain.TransportError{Op: "decode", Err: err}})
			continue
		}
		c.emit(ev)
	}
}

func (c *Client) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug().Err(err).Msg("ping")
				_ = conn.Close()
				return
			}
		case frame := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn().Err(err).Msg("relay write")
				_ = conn.Close()
				return
			}
		}
	}
}

// emit delivers ev unless the events channel is already closed. It gives up
// waiting once the client is closed.
func (c *Client) emit(ev core.RelayEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.eventsClosed {
		return
	}
	select {
	case c.events <- ev:
		return
	default:
	}
	select {
	case c.events <- ev:
	case <-c.done:
		c.logger.Debug().Msgf("dropped %T after close", ev)
	}
}

func (c *Client) closeEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.eventsClosed {
		c.eventsClosed = true
		close(c.events)
	}
}
