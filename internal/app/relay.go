package app

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/core"
	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Relay owns the shared server-side state: the presence registry, the session
// broadcast-group table and the set of live transport endpoints. Handlers call
// into it; it never inspects payload bytes beyond what it was handed.
type Relay struct {
	Registry *Registry
	Sessions *SessionTable
	Policy   Policy

	mu    sync.RWMutex
	peers map[domain.ConnectionID]core.Peer
}

func NewRelay(reg *Registry, sessions *SessionTable, policy Policy) *Relay {
	return &Relay{
		Registry: reg,
		Sessions: sessions,
		Policy:   policy,
		peers:    make(map[domain.ConnectionID]core.Peer),
	}
}

// Connect binds a transport endpoint and creates the default identity.
func (r *Relay) Connect(p core.Peer) domain.Identity {
	r.mu.Lock()
	r.peers[p.ID()] = p
	r.mu.Unlock()
	return r.Registry.OnConnect(p.ID())
}

// Peer looks up a live transport endpoint by connection id.
func (r *Relay) Peer(id domain.ConnectionID) (core.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// Disconnect tears down everything the connection owned: transport binding,
// session memberships and the registry entry. It returns the sessions the
// connection was still part of so the caller can notify survivors. Processing
// a duplicate disconnect is a no-op reporting removed=false.
func (r *Relay) Disconnect(id domain.ConnectionID) (left []domain.SessionID, removed bool) {
	r.mu.Lock()
	_, had := r.peers[id]
	delete(r.peers, id)
	r.mu.Unlock()

	left = r.Sessions.DropConnection(id)
	removed = r.Registry.OnDisconnect(id) || had
	if removed {
		log.Info().Str("module", "app.relay").Str("conn", string(id)).Int("sessions_left", len(left)).Msg("disconnected")
	}
	return left, removed
}

// JoinRoom adds the connection to the session's broadcast group.
func (r *Relay) JoinRoom(id domain.ConnectionID, sid domain.SessionID) error {
	p, ok := r.Peer(id)
	if !ok {
		return ErrUnknownConnection
	}
	r.Sessions.Join(sid, p)
	return nil
}

// BroadcastRoom forwards a frame verbatim to every other member of the session,
// never back to the sender. Slow receivers are handed to the policy.
func (r *Relay) BroadcastRoom(from domain.ConnectionID, sid domain.SessionID, data core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, p := range r.Sessions.Members(sid) {
		if p.ID() == from {
			continue
		}
		if err := p.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, p)
			continue
		}
		res.SentTo++
	}
	r.applyPolicy(res.Dropped)
	log.Debug().Str("module", "app.relay").Str("session", string(sid)).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("room broadcast")
	return res
}

// BroadcastAll fans a frame out to every live connection (presence updates).
func (r *Relay) BroadcastAll(data core.Frame) core.PublishResult {
	r.mu.RLock()
	peers := make([]core.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	res := core.PublishResult{}
	for _, p := range peers {
		if err := p.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, p)
			continue
		}
		res.SentTo++
	}
	r.applyPolicy(res.Dropped)
	return res
}

// SendTo delivers a frame to one specific connection, bypassing sessions.
// Used for incoming-call, which may ring a target that joined nothing yet.
func (r *Relay) SendTo(target domain.ConnectionID, data core.Frame) error {
	p, ok := r.Peer(target)
	if !ok {
		return ErrUnknownConnection
	}
	if err := p.Signal().TrySend(data); err != nil {
		r.applyPolicy([]core.Peer{p})
		return err
	}
	return nil
}

func (r *Relay) applyPolicy(dropped []core.Peer) {
	if r.Policy == nil {
		return
	}
	for _, slow := range dropped {
		switch r.Policy.OnBackPressure(slow) {
		case KickPeer:
			r.Sessions.DropConnection(slow.ID())
			log.Warn().Str("module", "app.relay").Str("conn", string(slow.ID())).Msg("kicked slow peer from sessions")
		case MarkSlow, DropFrame, NoAction:
		}
	}
}
