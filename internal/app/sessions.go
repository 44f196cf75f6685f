package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/core"
	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

// SessionTable holds the transport-level broadcast groups backing each
// two-party pairing. Sessions materialize lazily on first join and are removed
// when membership reaches zero; no client ever deletes one explicitly.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]map[domain.ConnectionID]core.Peer
}

func NewSessionTable() *SessionTable {
	return &SessionTable{
		sessions: make(map[domain.SessionID]map[domain.ConnectionID]core.Peer),
	}
}

// Join adds a peer to the session's broadcast group. Joining twice is a no-op.
func (t *SessionTable) Join(sid domain.SessionID, p core.Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.sessions[sid]
	if !ok {
		members = make(map[domain.ConnectionID]core.Peer, 2)
		t.sessions[sid] = members
	}
	if _, ok := members[p.ID()]; ok {
		return
	}
	members[p.ID()] = p
	log.Info().Str("module", "app.sessions").Str("session", string(sid)).Str("conn", string(p.ID())).Msg("member joined")
}

// Leave drops one connection from one session, deleting the session once
// empty. It reports whether the connection was actually a member, so callers
// can treat a repeated leave as a no-op.
func (t *SessionTable) Leave(sid domain.SessionID, id domain.ConnectionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaveLocked(sid, id)
}

func (t *SessionTable) leaveLocked(sid domain.SessionID, id domain.ConnectionID) bool {
	members, ok := t.sessions[sid]
	if !ok {
		return false
	}
	if _, ok := members[id]; !ok {
		return false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(t.sessions, sid)
	}
	log.Info().Str("module", "app.sessions").Str("session", string(sid)).Str("conn", string(id)).Msg("member left")
	return true
}

// DropConnection removes the connection from every session it belongs to and
// returns the sessions it actually left, so the relay can notify survivors.
func (t *SessionTable) DropConnection(id domain.ConnectionID) []domain.SessionID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var left []domain.SessionID
	for sid, members := range t.sessions {
		if _, ok := members[id]; ok {
			left = append(left, sid)
			t.leaveLocked(sid, id)
		}
	}
	return left
}

// Members returns the current peers of a session.
func (t *SessionTable) Members(sid domain.SessionID) []core.Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members, ok := t.sessions[sid]
	if !ok {
		return nil
	}
	out := make([]core.Peer, 0, len(members))
	for _, p := range members {
		out = append(out, p)
	}
	return out
}

// Contains reports whether a connection is a member of the session.
func (t *SessionTable) Contains(sid domain.SessionID, id domain.ConnectionID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members, ok := t.sessions[sid]
	if !ok {
		return false
	}
	_, ok = members[id]
	return ok
}

// Count reports how many sessions currently exist.
func (t *SessionTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
