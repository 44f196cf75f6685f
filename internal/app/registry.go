package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

// Registry is the authoritative "who is online" store. Every open connection
// has exactly one entry; closed connections have none. Mutation happens only
// through the relay's connect/register/disconnect path.
type Registry struct {
	mu         sync.RWMutex
	identities map[domain.ConnectionID]domain.Identity
	order      []domain.ConnectionID
}

func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[domain.ConnectionID]domain.Identity),
	}
}

// OnConnect creates the default stranger identity for a fresh connection.
// Reconnecting with an id that is already present keeps the stored identity.
func (r *Registry) OnConnect(id domain.ConnectionID) domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ident, ok := r.identities[id]; ok {
		return ident
	}
	ident := domain.NewStranger(id)
	r.identities[id] = ident
	r.order = append(r.order, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection added")
	return ident
}

// OnRegister replaces the stored identity atomically with the caller-supplied
// snapshot, whatever its content. The connection id always comes from the
// transport, never from the payload.
func (r *Registry) OnRegister(id domain.ConnectionID, name, avatar string, userID domain.UserID) (domain.Identity, error) {
	ident := domain.Registered(id, name, avatar, userID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.identities[id]; !ok {
		return domain.Identity{}, ErrUnknownConnection
	}
	r.identities[id] = ident
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("name", ident.Name).Msg("identity registered")
	return ident, nil
}

// OnDisconnect removes the entry. Removing an absent id is a no-op so a late
// duplicate disconnect notification cannot corrupt the list.
func (r *Registry) OnDisconnect(id domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.identities[id]; !ok {
		return false
	}
	delete(r.identities, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection removed")
	return true
}

// Identity returns the current record for a connection.
func (r *Registry) Identity(id domain.ConnectionID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.identities[id]
	return ident, ok
}

// Snapshot returns all current identities in insertion order. Ordering only
// matters for UI stability, not correctness.
func (r *Registry) Snapshot() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Identity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.identities[id])
	}
	return out
}

// Count reports the number of live entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}
