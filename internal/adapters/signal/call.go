package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
	"github.com/Girdhari0002/STRANGERFLOW/internal/protocol"
)

// handleCallUser rings a specific connection with the caller's identity. This
// is the one direct-addressed event: the target may not have joined any
// session yet, so it cannot go through a broadcast group.
func (ctl *SignalWSController) handleCallUser(st *connState, data []byte) {
	var p protocol.CallUser
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Warn().Str("module", "signal").Str("conn", string(st.id)).Msg("call-user without target, dropped")
		return
	}
	if !ctl.Invites.Allow(st.id) {
		log.Warn().Str("module", "signal").Str("conn", string(st.id)).Msg("call-user rate limited")
		return
	}

	caller, ok := ctl.Relay.Registry.Identity(st.id)
	if !ok {
		caller = domain.NewStranger(st.id)
	}
	out := protocol.IncomingCall{
		Type:          protocol.EvtIncomingCall,
		From:          string(st.id),
		Name:          caller.Name,
		Avatar:        caller.Avatar,
		Authenticated: st.authenticated,
	}
	if err := ctl.Relay.SendTo(domain.ConnectionID(p.To), encode(out)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(st.id)).Str("to", p.To).Msg("call-user delivery failed")
		return
	}
	log.Info().Str("module", "signal").Str("from", string(st.id)).Str("to", p.To).Msg("call placed")
}
