package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
	"github.com/Girdhari0002/STRANGERFLOW/internal/protocol"
)

func (ctl *SignalWSController) sendWelcome(st *connState, ident domain.Identity) {
	ctl.sendJSON(st.conn, protocol.Welcome{
		Type:        protocol.EvtWelcome,
		Identity:    ident,
		STUNServers: ctl.STUNServers,
	})
}

// broadcastPresence fans the full registry snapshot out to every connection.
// No diffing: at tens to low hundreds of entries the snapshot is cheap and the
// clients stay trivially consistent.
func (ctl *SignalWSController) broadcastPresence() {
	snap := ctl.Relay.Registry.Snapshot()
	frame := encode(protocol.UpdateUsers{Type: protocol.EvtUpdateUsers, Users: snap})
	if frame == nil {
		return
	}
	ctl.Relay.BroadcastAll(frame)
}

func (ctl *SignalWSController) handleRegisterUser(st *connState, data []byte) {
	var p protocol.RegisterUser
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad register payload")
		return
	}

	ident, err := ctl.Relay.Registry.OnRegister(st.id, p.Name, p.Avatar, domain.UserID(p.UserID))
	if err != nil {
		ctl.sendJSON(st.conn, protocol.ErrorEvent{Type: protocol.EvtError, Error: "unknown_connection"})
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(st.id)).Str("name", ident.Name).Msg("user registered")
	ctl.broadcastPresence()
}

// teardown runs the full disconnect path. Safe to call more than once: the
// relay reports removed=false on a duplicate and nothing fans out again.
func (ctl *SignalWSController) teardown(st *connState) {
	left, removed := ctl.Relay.Disconnect(st.id)
	if !removed {
		return
	}
	ctl.Invites.Forget(st.id)
	frame := encode(protocol.Envelope{Type: protocol.EvtPartnerLeft})
	for _, sid := range left {
		ctl.Relay.BroadcastRoom(st.id, sid, frame)
	}
	ctl.broadcastPresence()
}
