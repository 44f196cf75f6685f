package call

import (
	"encoding/json"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

// Media is the local negotiation/transport engine behind one call attempt.
// All operations are invoked from the machine's event loop only; the adapter
// reports asynchronous results back through the machine's Handle* methods.
type Media interface {
	// Acquire runs the device ladder: full audio+video, then audio-only, then
	// nothing. It never fails the call; the returned mode records how far the
	// ladder got.
	Acquire() MediaMode
	// CreateOffer builds and sets the local description and returns it
	// serialized for the wire.
	CreateOffer() (json.RawMessage, error)
	// AcceptOffer sets the remote description and returns the local answer.
	AcceptOffer(offer json.RawMessage) (json.RawMessage, error)
	// AcceptAnswer sets the remote description on the initiator side.
	AcceptAnswer(answer json.RawMessage) error
	// AddCandidate applies one remote connectivity candidate.
	AddCandidate(cand json.RawMessage) error
	// Close releases the transport and any acquired devices. Must be
	// idempotent.
	Close()
}

// Signaler is the machine's view of the relay connection.
type Signaler interface {
	JoinRoom(sid domain.SessionID) error
	SendPeerReady(sid domain.SessionID) error
	SendOffer(sid domain.SessionID, offer json.RawMessage) error
	SendAnswer(sid domain.SessionID, answer json.RawMessage) error
	SendCandidate(sid domain.SessionID, cand json.RawMessage) error
	SendLeave(sid domain.SessionID) error
}

// Invite is the ring notification as the callee sees it.
type Invite struct {
	From          domain.ConnectionID
	Name          string
	Avatar        string
	Authenticated bool
}

// InvitePolicy gates the Idle -> Ringing transition on the callee.
type InvitePolicy interface {
	Allow(inv Invite) bool
}

// AllowAll accepts every invite.
type AllowAll struct{}

func (AllowAll) Allow(Invite) bool { return true }

// RequireAuthenticated only rings for callers the relay vouched for.
type RequireAuthenticated struct{}

func (RequireAuthenticated) Allow(inv Invite) bool { return inv.Authenticated }
