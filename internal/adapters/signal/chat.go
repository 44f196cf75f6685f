package signal

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
	"github.com/Girdhari0002/STRANGERFLOW/internal/protocol"
)

// handleMessage relays chat text to the rest of the session. The only
// annotation the relay adds is the send timestamp and the "partner" sender
// label the receiving side displays.
func (ctl *SignalWSController) handleMessage(st *connState, data []byte) {
	var p protocol.ChatSend
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Str("module", "signal").Str("conn", string(st.id)).Msg("message without roomId, dropped")
		return
	}
	out := protocol.ChatRelay{
		Type:        protocol.EvtMessage,
		ChatMessage: domain.NewPartnerMessage(p.Text, time.Now()),
	}
	ctl.Relay.BroadcastRoom(st.id, domain.SessionID(p.RoomID), encode(out))
}

// handleTyping is ephemeral last-write-wins state; nothing is stored.
func (ctl *SignalWSController) handleTyping(st *connState, data []byte) {
	var p protocol.TypingEvent
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return
	}
	out := protocol.TypingEvent{Type: protocol.EvtTyping, IsTyping: p.IsTyping}
	ctl.Relay.BroadcastRoom(st.id, domain.SessionID(p.RoomID), encode(out))
}
