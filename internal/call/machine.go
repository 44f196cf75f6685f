package call

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

type eventKind int

const (
	evRing eventKind = iota
	evPlace
	evAccept
	evPeerReady
	evOffer
	evAnswer
	evCandidate
	evConnected
	evPartnerLeft
	evHangup
	evTransportClosed
)

type event struct {
	kind    eventKind
	invite  Invite
	payload json.RawMessage
}

// Machine runs one call attempt on one side. It is constructed fresh for
// every attempt and is dead once it reaches StateEnded; a new attempt between
// the same pair builds a new Machine.
type Machine struct {
	self domain.ConnectionID
	peer domain.ConnectionID
	sid  domain.SessionID
	role Role

	media    Media
	signaler Signaler
	policy   InvitePolicy

	state atomic.Int32
	mode  atomic.Int32

	events  chan event
	stopped chan struct{}

	// Loop-owned: never touched outside run().
	buffer    *CandidateBuffer
	remoteSet bool
	offerSent bool

	onState func(State)
}

func newMachine(self, peer domain.ConnectionID, role Role, media Media, signaler Signaler, policy InvitePolicy) *Machine {
	if policy == nil {
		policy = AllowAll{}
	}
	m := &Machine{
		self:     self,
		peer:     peer,
		sid:      domain.DeriveSessionID(self, peer),
		role:     role,
		media:    media,
		signaler: signaler,
		policy:   policy,
		events:   make(chan event, 32),
		stopped:  make(chan struct{}),
		buffer:   NewCandidateBuffer(),
	}
	m.state.Store(int32(StateIdle))
	return m
}

// NewOutgoing builds the initiator-side machine for a call to peer.
func NewOutgoing(self, peer domain.ConnectionID, media Media, signaler Signaler) *Machine {
	return newMachine(self, peer, RoleInitiator, media, signaler, nil)
}

// NewIncoming builds the callee-side machine for a received invite.
func NewIncoming(self domain.ConnectionID, inv Invite, media Media, signaler Signaler, policy InvitePolicy) *Machine {
	return newMachine(self, inv.From, RoleCallee, media, signaler, policy)
}

// Start launches the event loop. The loop exits once the attempt reaches
// StateEnded or ctx is cancelled; events arriving after that are dropped
// without blocking the sender.
func (m *Machine) Start(ctx context.Context) {
	go m.run(ctx)
}

// Done is closed once the event loop has exited.
func (m *Machine) Done() <-chan struct{} { return m.stopped }

func (m *Machine) State() State              { return State(m.state.Load()) }
func (m *Machine) Mode() MediaMode           { return MediaMode(m.mode.Load()) }
func (m *Machine) Role() Role                { return m.role }
func (m *Machine) Peer() domain.ConnectionID { return m.peer }
func (m *Machine) SessionID() domain.SessionID {
	return m.sid
}

// OnStateChange registers an observer invoked from the event loop on every
// transition. Must be set before Start.
func (m *Machine) OnStateChange(fn func(State)) { m.onState = fn }

// Ring delivers the incoming-call notification (callee side).
func (m *Machine) Ring(inv Invite) { m.enqueue(event{kind: evRing, invite: inv}) }

// Place starts the outgoing attempt (initiator side).
func (m *Machine) Place() { m.enqueue(event{kind: evPlace}) }

// Accept is the callee's local decision to proceed from Ringing.
func (m *Machine) Accept() { m.enqueue(event{kind: evAccept}) }

// HandlePeerReady reports the relayed peer-ready signal.
func (m *Machine) HandlePeerReady() { m.enqueue(event{kind: evPeerReady}) }

// HandleOffer reports a relayed offer (opaque payload).
func (m *Machine) HandleOffer(offer json.RawMessage) {
	m.enqueue(event{kind: evOffer, payload: offer})
}

// HandleAnswer reports a relayed answer.
func (m *Machine) HandleAnswer(answer json.RawMessage) {
	m.enqueue(event{kind: evAnswer, payload: answer})
}

// HandleCandidate reports a relayed connectivity candidate.
func (m *Machine) HandleCandidate(cand json.RawMessage) {
	m.enqueue(event{kind: evCandidate, payload: cand})
}

// HandleConnected reports the local transport observing a connected state.
// This is purely local, never a relayed event.
func (m *Machine) HandleConnected() { m.enqueue(event{kind: evConnected}) }

// HandlePartnerLeft reports the relayed partner-left notification.
func (m *Machine) HandlePartnerLeft() { m.enqueue(event{kind: evPartnerLeft}) }

// Hangup is the local user ending the call; it emits leave-call to the relay.
func (m *Machine) Hangup() { m.enqueue(event{kind: evHangup}) }

// HandleTransportClosed reports the signaling connection dropping out from
// under the call; treated exactly like partner-left.
func (m *Machine) HandleTransportClosed() { m.enqueue(event{kind: evTransportClosed}) }

func (m *Machine) enqueue(ev event) {
	select {
	case m.events <- ev:
	case <-m.stopped:
	}
}

func (m *Machine) run(ctx context.Context) {
	defer close(m.stopped)
	for {
		select {
		case <-ctx.Done():
			m.teardown()
			return
		case ev := <-m.events:
			m.dispatch(ev)
			if m.State() == StateEnded {
				return
			}
		}
	}
}

func (m *Machine) dispatch(ev event) {
	state := m.State()
	if state == StateEnded {
		// Stale events for a finished attempt are dropped silently.
		return
	}

	switch ev.kind {
	case evRing:
		m.onRing(state, ev.invite)
	case evPlace:
		m.onPlace(state)
	case evAccept:
		m.onAccept(state)
	case evPeerReady:
		m.onPeerReady(state)
	case evOffer:
		m.onOffer(state, ev.payload)
	case evAnswer:
		m.onAnswer(state, ev.payload)
	case evCandidate:
		m.onCandidate(ev.payload)
	case evConnected:
		if state == StateNegotiating {
			m.transition(StateActive)
		}
	case evPartnerLeft, evTransportClosed:
		m.teardown()
	case evHangup:
		_ = m.signaler.SendLeave(m.sid)
		m.teardown()
	}
}

func (m *Machine) onRing(state State, inv Invite) {
	if m.role != RoleCallee || state != StateIdle {
		return
	}
	if !m.policy.Allow(inv) {
		log.Info().Str("module", "call").Str("from", string(inv.From)).Msg("invite rejected by policy")
		return
	}
	m.transition(StateRinging)
}

// onPlace is the initiator's Idle -> Negotiating step: join the derived
// session and settle local media, then wait for the callee's peer-ready
// before any offer exists. That ordering is load-bearing.
func (m *Machine) onPlace(state State) {
	if m.role != RoleInitiator || state != StateIdle {
		return
	}
	if err := m.signaler.JoinRoom(m.sid); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("join room")
		m.teardown()
		return
	}
	m.mode.Store(int32(m.media.Acquire()))
	m.transition(StateNegotiating)
}

// onAccept is the callee's Ringing -> Negotiating step: join, settle media
// (or fail to), then tell the initiator we are ready to receive its offer.
func (m *Machine) onAccept(state State) {
	if m.role != RoleCallee || state != StateRinging {
		return
	}
	if err := m.signaler.JoinRoom(m.sid); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("join room")
		m.teardown()
		return
	}
	m.mode.Store(int32(m.media.Acquire()))
	m.transition(StateNegotiating)
	if err := m.signaler.SendPeerReady(m.sid); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("send peer-ready")
	}
}

func (m *Machine) onPeerReady(state State) {
	if m.role != RoleInitiator || state != StateNegotiating || m.offerSent {
		return
	}
	offer, err := m.media.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "call").Msg("create offer")
		return
	}
	if err := m.signaler.SendOffer(m.sid, offer); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("send offer")
		return
	}
	m.offerSent = true
}

func (m *Machine) onOffer(state State, offer json.RawMessage) {
	if m.role != RoleCallee || state != StateNegotiating {
		return
	}
	answer, err := m.media.AcceptOffer(offer)
	if err != nil {
		log.Error().Err(err).Str("module", "call").Msg("accept offer")
		return
	}
	m.remoteDescriptionSet()
	if err := m.signaler.SendAnswer(m.sid, answer); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("send answer")
	}
}

func (m *Machine) onAnswer(state State, answer json.RawMessage) {
	if m.role != RoleInitiator || state != StateNegotiating || !m.offerSent {
		return
	}
	if err := m.media.AcceptAnswer(answer); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("accept answer")
		return
	}
	m.remoteDescriptionSet()
}

// onCandidate applies the buffering policy: immediate once the remote
// description is set, buffered before that.
func (m *Machine) onCandidate(cand json.RawMessage) {
	if m.remoteSet {
		if err := m.media.AddCandidate(cand); err != nil {
			log.Error().Err(err).Str("module", "call").Msg("add candidate")
		}
		return
	}
	m.buffer.Push(cand)
}

// remoteDescriptionSet drains the candidate buffer exactly once, in arrival
// order, the instant the remote description lands.
func (m *Machine) remoteDescriptionSet() {
	m.remoteSet = true
	for _, cand := range m.buffer.Drain() {
		if err := m.media.AddCandidate(cand); err != nil {
			log.Error().Err(err).Str("module", "call").Msg("add buffered candidate")
		}
	}
}

// teardown ends the attempt and releases everything it owned. Idempotent: a
// duplicate disconnect signal finds StateEnded and does nothing.
func (m *Machine) teardown() {
	if m.State() == StateEnded {
		return
	}
	m.media.Close()
	m.buffer = NewCandidateBuffer()
	m.transition(StateEnded)
	log.Info().Str("module", "call").Str("session", string(m.sid)).Str("role", m.role.String()).Msg("call ended")
}

func (m *Machine) transition(next State) {
	prev := m.State()
	if prev == next {
		return
	}
	m.state.Store(int32(next))
	log.Debug().Str("module", "call").Str("session", string(m.sid)).Str("from", prev.String()).Str("to", next.String()).Msg("state transition")
	if m.onState != nil {
		m.onState(next)
	}
}
