// Package signal is the relay's websocket endpoint: it binds peer ids to
// connections and forwards call signaling between them.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	SendQueue    int
	RateLimit    int
	RateInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 65536
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 32
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 200
	}
	if o.RateInterval <= 0 {
		o.RateInterval = time.Second
	}
	return o
}

type SignalWSController struct {
	Registry *app.Registry
	Policy   app.Policy
	Options  Options

	limiter *RateLimiter
}

func NewSignalWSController(reg *app.Registry, policy app.Policy, opts Options) *SignalWSController {
	opts = opts.withDefaults()
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	return &SignalWSController{
		Registry: reg,
		Policy:   policy,
		Options:  opts,
		limiter:  NewRateLimiter(opts.RateLimit, opts.RateInterval),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// peerState is owned by the connection's read pump.
type peerState struct {
	token  string
	conn   *WsSignalConn
	cancel context.CancelFunc
	id     string
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("token", token).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Options.SendQueue),
	}
	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(ctx, conn.Close)

	st := &peerState{token: token, conn: conn, cancel: cancel}
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, st)
}
