// Package protocol defines the JSON signaling envelope shared by the server
// adapter and the client. Negotiation payloads (offer, answer, candidate) stay
// opaque json.RawMessage; the relay routes on type and roomId only.
package protocol

import (
	"encoding/json"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

type EventType string

// Client -> server.
const (
	EvtRegisterUser EventType = "register-user"
	EvtJoinRoom     EventType = "join-room"
	EvtMessage      EventType = "message"
	EvtTyping       EventType = "typing"
	EvtOffer        EventType = "offer"
	EvtAnswer       EventType = "answer"
	EvtICECandidate EventType = "ice-candidate"
	EvtCallUser     EventType = "call-user"
	EvtPeerReady    EventType = "peer-ready"
	EvtLeaveCall    EventType = "leave-call"
	EvtPing         EventType = "ping"
)

// Server -> client.
const (
	EvtWelcome      EventType = "welcome"
	EvtUpdateUsers  EventType = "update-users"
	EvtIncomingCall EventType = "incoming-call"
	EvtPartnerLeft  EventType = "partner-left"
	EvtPong         EventType = "pong"
	EvtError        EventType = "error"
)

// Envelope is the minimal frame every event parses into first.
type Envelope struct {
	Type EventType `json:"type"`
}

type RegisterUser struct {
	Type   EventType `json:"type"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar,omitempty"`
	UserID string    `json:"userId,omitempty"`
}

// RoomEvent covers the kinds whose only routing field is the session id:
// join-room, leave-call and the sender side of peer-ready.
type RoomEvent struct {
	Type   EventType `json:"type"`
	RoomID string    `json:"roomId"`
}

type ChatSend struct {
	Type   EventType `json:"type"`
	RoomID string    `json:"roomId"`
	Text   string    `json:"text"`
}

type ChatRelay struct {
	Type EventType `json:"type"`
	domain.ChatMessage
}

type TypingEvent struct {
	Type     EventType `json:"type"`
	RoomID   string    `json:"roomId,omitempty"`
	IsTyping bool      `json:"isTyping"`
}

type OfferEvent struct {
	Type   EventType       `json:"type"`
	RoomID string          `json:"roomId,omitempty"`
	Offer  json.RawMessage `json:"offer"`
}

type AnswerEvent struct {
	Type   EventType       `json:"type"`
	RoomID string          `json:"roomId,omitempty"`
	Answer json.RawMessage `json:"answer"`
}

type CandidateEvent struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}

type CallUser struct {
	Type EventType `json:"type"`
	To   string    `json:"to"`
}

// IncomingCall is the out-of-band ring notification delivered directly to the
// target connection; it bypasses session groups entirely.
type IncomingCall struct {
	Type          EventType `json:"type"`
	From          string    `json:"from"`
	Name          string    `json:"name"`
	Avatar        string    `json:"avatar"`
	Authenticated bool      `json:"authenticated"`
}

type PeerReady struct {
	Type   EventType `json:"type"`
	RoomID string    `json:"roomId,omitempty"`
	ID     string    `json:"id,omitempty"`
}

// Welcome carries the assigned identity plus the STUN servers the client
// should hand to its transport engine.
type Welcome struct {
	Type        EventType       `json:"type"`
	Identity    domain.Identity `json:"identity"`
	STUNServers []string        `json:"stunServers,omitempty"`
}

type UpdateUsers struct {
	Type  EventType         `json:"type"`
	Users []domain.Identity `json:"users"`
}

type ErrorEvent struct {
	Type  EventType `json:"type"`
	Error string    `json:"error"`
}
