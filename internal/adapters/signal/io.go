package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Options.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, st *peerState) {
	c := st.conn
	defer func() {
		log.Info().Str("module", "signal").Str("peer", st.id).Msg("readPump closing")
		if st.id != "" {
			ctl.Registry.Unbind(domain.PeerID(st.id), c)
		}
		ctl.limiter.Forget(st.token)
		st.cancel()
		c.Close()
	}()

	pongWait := ctl.Options.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.Options.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("peer", st.id).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("peer", st.id).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(st, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(st *peerState, data []byte) {
	if !ctl.limiter.Allow(st.token) {
		ctl.sendError(st.conn, protocol.CodeRateLimited, "slow down")
		return
	}
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(st.conn, protocol.CodeBadPayload, err.Error())
		return
	}

	switch env.Event {
	case protocol.EventCreateID:
		ctl.handleCreateID(st, env)
	case protocol.EventOfferCall, protocol.EventAnswerCall, protocol.EventNewICE:
		ctl.handleForward(st, env)
	default:
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown signal")
		ctl.sendError(st.conn, protocol.CodeUnknownEvent, env.Event)
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code, message string) {
	if err := c.TrySend(protocol.ErrorFrame(code, message)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("code", code).Msg("error reply dropped")
	}
}

// deliver writes frame to target and applies the backpressure policy.
func (ctl *SignalWSController) deliver(target domain.PeerID, event string, frame []byte) {
	conn, ok := ctl.Registry.Lookup(target)
	if !ok {
		return
	}
	err := conn.TrySend(frame)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrBackpressure) {
		log.Debug().Err(err).Str("module", "signal").Str("peer", string(target)).Msg("deliver failed")
		return
	}
	switch action := ctl.Policy.OnBackPressure(target, event); action {
	case app.KickPeer:
		log.Warn().Str("module", "signal").Str("peer", string(target)).Msg("kick slow peer")
		ctl.Registry.Cancel(target)
	default:
		log.Warn().Str("module", "signal").Str("peer", string(target)).Str("event", event).Msg("frame dropped")
	}
}
