// Package domain contains entity without logic, just meta-data
package domain

import "fmt"

const (
	// DefaultDisplayName is the name every connection starts with until it registers.
	DefaultDisplayName = "Stranger"

	// DefaultAvatarTemplate produces a deterministic placeholder avatar for a
	// connection id; the %s verb receives the id as seed.
	DefaultAvatarTemplate = "https://api.dicebear.com/7.x/avataaars/svg?seed=%s"
)

// ConnectionID is the opaque per-connection token minted by the transport
// adapter at upgrade time. Its lifetime is the websocket connection.
type ConnectionID string

// UserID is an optional persistent account id carried through registration.
// The relay never resolves it; it only echoes it in presence snapshots.
type UserID string

// Identity is the display record a connection presents to everyone else.
type Identity struct {
	ID     ConnectionID `json:"id"`
	Name   string       `json:"name"`
	Avatar string       `json:"avatar"`
	UserID UserID       `json:"userId,omitempty"`
}

// PlaceholderAvatar returns the deterministic stranger avatar for an id.
func PlaceholderAvatar(id ConnectionID) string {
	return fmt.Sprintf(DefaultAvatarTemplate, id)
}

// NewStranger builds the default identity every connection receives at connect.
func NewStranger(id ConnectionID) Identity {
	return Identity{
		ID:     id,
		Name:   DefaultDisplayName,
		Avatar: PlaceholderAvatar(id),
	}
}

// Registered builds the identity stored on register-user. The connection id is
// always preserved from the transport, never taken from the caller, and a
// missing avatar falls back to the deterministic placeholder. The name is
// stored as supplied: no uniqueness or content checks.
func Registered(id ConnectionID, name, avatar string, userID UserID) Identity {
	if avatar == "" {
		avatar = PlaceholderAvatar(id)
	}
	return Identity{ID: id, Name: name, Avatar: avatar, UserID: userID}
}
