package signal

import (
	"errors"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleCreateID(st *peerState, env protocol.Envelope) {
	id, err := protocol.DecodeCreateID(env)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad create-id payload")
		ctl.sendError(st.conn, protocol.CodeBadPayload, err.Error())
		return
	}
	if st.id != "" && st.id != string(id) {
		ctl.Registry.Unbind(domain.PeerID(st.id), st.conn)
	}
	st.id = string(id)
	ctl.Registry.Bind(id, st.token, st.conn, st.cancel)
}

func (ctl *SignalWSController) handleForward(st *peerState, env protocol.Envelope) {
	if st.id == "" {
		ctl.sendError(st.conn, protocol.CodeNotRegistered, env.Event)
		return
	}
	routed, err := protocol.Route(env)
	if err != nil {
		code := protocol.CodeBadPayload
		if errors.Is(err, protocol.ErrUnknownEvent) {
			code = protocol.CodeUnknownEvent
		}
		log.Warn().Err(err).Str("module", "signal").Str("peer", st.id).Msg("route")
		ctl.sendError(st.conn, code, err.Error())
		return
	}
	if _, ok := ctl.Registry.Lookup(routed.To); !ok {
		log.Info().Str("module", "signal").Str("peer", st.id).Str("to", string(routed.To)).Msg("unknown target")
		ctl.sendError(st.conn, protocol.CodeUnknownPeer, string(routed.To))
		return
	}
	log.Debug().Str("module", "signal").Str("from", st.id).Str("to", string(routed.To)).Str("event", routed.Event).Msg("forward")
	ctl.deliver(routed.To, routed.Event, routed.Frame)
}
