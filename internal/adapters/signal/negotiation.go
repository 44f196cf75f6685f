package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
	"github.com/Girdhari0002/STRANGERFLOW/internal/protocol"
)

// The negotiation handlers forward payload bytes verbatim. The relay only
// reads the routing fields; offers, answers and candidates stay opaque.

func (ctl *SignalWSController) handleOffer(st *connState, data []byte) {
	var p protocol.OfferEvent
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Str("module", "signal").Str("conn", string(st.id)).Msg("offer without roomId, dropped")
		return
	}
	out := protocol.OfferEvent{Type: protocol.EvtOffer, RoomID: p.RoomID, Offer: p.Offer}
	ctl.Relay.BroadcastRoom(st.id, domain.SessionID(p.RoomID), encode(out))
}

func (ctl *SignalWSController) handleAnswer(st *connState, data []byte) {
	var p protocol.AnswerEvent
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Str("module", "signal").Str("conn", string(st.id)).Msg("answer without roomId, dropped")
		return
	}
	out := protocol.AnswerEvent{Type: protocol.EvtAnswer, RoomID: p.RoomID, Answer: p.Answer}
	ctl.Relay.BroadcastRoom(st.id, domain.SessionID(p.RoomID), encode(out))
}

func (ctl *SignalWSController) handleCandidate(st *connState, data []byte) {
	var p protocol.CandidateEvent
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Str("module", "signal").Str("conn", string(st.id)).Msg("candidate without roomId, dropped")
		return
	}
	out := protocol.CandidateEvent{Type: protocol.EvtICECandidate, RoomID: p.RoomID, Candidate: p.Candidate}
	ctl.Relay.BroadcastRoom(st.id, domain.SessionID(p.RoomID), encode(out))
}

// handlePeerReady tells the initiator the callee has joined the session and
// settled its local media; the relay stamps the sender id so the initiator can
// match it to the pairing.
func (ctl *SignalWSController) handlePeerReady(st *connState, data []byte) {
	var p protocol.PeerReady
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Str("module", "signal").Str("conn", string(st.id)).Msg("peer-ready without roomId, dropped")
		return
	}
	out := protocol.PeerReady{Type: protocol.EvtPeerReady, RoomID: p.RoomID, ID: string(st.id)}
	ctl.Relay.BroadcastRoom(st.id, domain.SessionID(p.RoomID), encode(out))
}
