package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
	"github.com/Girdhari0002/STRANGERFLOW/internal/protocol"
)

func (ctl *SignalWSController) handleJoinRoom(st *connState, data []byte) {
	var p protocol.RoomEvent
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Str("module", "signal").Str("conn", string(st.id)).Msg("join-room without roomId, dropped")
		return
	}
	if err := ctl.Relay.JoinRoom(st.id, domain.SessionID(p.RoomID)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(st.id)).Msg("join-room failed")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(st.id)).Str("room", p.RoomID).Msg("joined room")
}

// handleLeaveCall is the voluntary teardown signal, distinct from an abrupt
// disconnect: the websocket stays open, only the session membership ends.
// A second leave-call for the same session is a no-op.
func (ctl *SignalWSController) handleLeaveCall(st *connState, data []byte) {
	var p protocol.RoomEvent
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Str("module", "signal").Str("conn", string(st.id)).Msg("leave-call without roomId, dropped")
		return
	}
	sid := domain.SessionID(p.RoomID)

	// Notify survivors before dropping membership; a non-member sender means a
	// duplicate leave and nothing fans out.
	if !ctl.Relay.Sessions.Contains(sid, st.id) {
		return
	}
	ctl.Relay.BroadcastRoom(st.id, sid, encode(protocol.Envelope{Type: protocol.EvtPartnerLeft}))
	ctl.Relay.Sessions.Leave(sid, st.id)
	log.Info().Str("module", "signal").Str("conn", string(st.id)).Str("room", p.RoomID).Msg("left call")
}
