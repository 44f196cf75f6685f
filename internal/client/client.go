// Package client is the Go counterpart of the browser client: it speaks the
// signaling protocol over a websocket and drives one call.Machine per
// attempt. Used by integration tests and headless tooling.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/call"
	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
	"github.com/Girdhari0002/STRANGERFLOW/internal/protocol"
)

var ErrNoWelcome = errors.New("server sent no welcome")

// MediaFactory builds the local media engine for one call attempt.
type MediaFactory func(sid domain.SessionID) (call.Media, error)

// Handlers are the application-level callbacks a client may observe. All are
// optional and invoked from the read loop.
type Handlers struct {
	OnUsers       func([]domain.Identity)
	OnChat        func(domain.ChatMessage)
	OnTyping      func(bool)
	OnIncoming    func(call.Invite)
	OnPartnerLeft func()
}

type clientDeps struct {
	media    MediaFactory
	policy   call.InvitePolicy
	handlers Handlers
}

// Options configures Dial.
type Options struct {
	Media    MediaFactory
	Policy   call.InvitePolicy
	Handlers Handlers
}

// Conn is the connected client.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	deps clientDeps

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	id       domain.ConnectionID
	identity domain.Identity
	stun     []string
	users    []domain.Identity
	machine  *call.Machine

	welcome chan struct{}
	done    chan struct{}
}

// Dial connects, waits for the server's welcome carrying the assigned
// connection id, and starts the read loop.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	if opts.Media == nil {
		return nil, errors.New("media factory required")
	}
	if opts.Policy == nil {
		opts.Policy = call.AllowAll{}
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling server: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	cctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		ws:      ws,
		deps:    clientDeps{media: opts.Media, policy: opts.Policy, handlers: opts.Handlers},
		ctx:     cctx,
		cancel:  cancel,
		welcome: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	select {
	case <-c.welcome:
	case <-time.After(10 * time.Second):
		c.Close()
		return nil, ErrNoWelcome
	case <-cctx.Done():
		c.Close()
		return nil, cctx.Err()
	}
	return c, nil
}

// ID is the server-assigned connection id.
func (c *Conn) ID() domain.ConnectionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Identity is the default identity the server assigned at connect.
func (c *Conn) Identity() domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// STUNServers is the transport server list announced in the welcome; hand it
// to RTCMedia when building the pion factory.
func (c *Conn) STUNServers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.stun))
	copy(out, c.stun)
	return out
}

// Users is the latest presence snapshot.
func (c *Conn) Users() []domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Identity, len(c.users))
	copy(out, c.users)
	return out
}

// Machine exposes the current call attempt, nil when idle.
func (c *Conn) Machine() *call.Machine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.machine
}

// Register replaces the stored identity with a full snapshot.
func (c *Conn) Register(name, avatar string, userID domain.UserID) error {
	return c.send(protocol.RegisterUser{
		Type:   protocol.EvtRegisterUser,
		Name:   name,
		Avatar: avatar,
		UserID: string(userID),
	})
}

// CallPeer starts an outgoing attempt to the given connection.
func (c *Conn) CallPeer(peer domain.ConnectionID) (*call.Machine, error) {
	m, err := c.attach(peer, call.RoleInitiator, call.Invite{})
	if err != nil {
		return nil, err
	}
	if err := c.send(protocol.CallUser{Type: protocol.EvtCallUser, To: string(peer)}); err != nil {
		return nil, err
	}
	m.Place()
	return m, nil
}

// Accept proceeds with the current ringing incoming call.
func (c *Conn) Accept() {
	if m := c.Machine(); m != nil {
		m.Accept()
	}
}

// Hangup ends the current attempt, if any.
func (c *Conn) Hangup() {
	if m := c.Machine(); m != nil {
		m.Hangup()
	}
}

// SendChat relays a text message into the current session.
func (c *Conn) SendChat(text string) error {
	m := c.Machine()
	if m == nil {
		return errors.New("no active session")
	}
	return c.send(protocol.ChatSend{Type: protocol.EvtMessage, RoomID: string(m.SessionID()), Text: text})
}

// SendTyping relays the ephemeral typing flag.
func (c *Conn) SendTyping(isTyping bool) error {
	m := c.Machine()
	if m == nil {
		return errors.New("no active session")
	}
	return c.send(protocol.TypingEvent{Type: protocol.EvtTyping, RoomID: string(m.SessionID()), IsTyping: isTyping})
}

// Close tears the connection down; the server's disconnect path handles the
// rest (partner-left to survivors, presence update).
func (c *Conn) Close() {
	c.cancel()
	_ = c.ws.Close()
	if m := c.Machine(); m != nil {
		m.HandleTransportClosed()
	}
}

// attach builds, wires and starts a fresh machine for one attempt. A finished
// machine is replaced; an in-flight one blocks new attempts.
func (c *Conn) attach(peer domain.ConnectionID, role call.Role, inv call.Invite) (*call.Machine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine != nil && c.machine.State() != call.StateEnded {
		return nil, errors.New("call already in progress")
	}

	sid := domain.DeriveSessionID(c.id, peer)
	media, err := c.deps.media(sid)
	if err != nil {
		return nil, fmt.Errorf("build media: %w", err)
	}

	var m *call.Machine
	if role == call.RoleInitiator {
		m = call.NewOutgoing(c.id, peer, media, c)
	} else {
		m = call.NewIncoming(c.id, inv, media, c, c.deps.policy)
	}

	// Media engines that surface transport events feed them straight into the
	// machine's queue; pion callbacks never touch machine state directly.
	if me, ok := media.(mediaEvents); ok {
		me.OnICECandidate(func(raw json.RawMessage) { _ = c.SendCandidate(sid, raw) })
		me.OnConnected(m.HandleConnected)
		me.OnClosed(m.HandleTransportClosed)
	}

	m.Start(c.ctx)
	c.machine = m
	return m, nil
}

// mediaEvents is the optional callback surface of a media engine
// (*rtc.Connection implements it).
type mediaEvents interface {
	OnICECandidate(func(json.RawMessage))
	OnConnected(func())
	OnClosed(func())
}

func (c *Conn) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "client").Msg("read loop exit")
			if m := c.Machine(); m != nil {
				m.HandleTransportClosed()
			}
			return
		}
		c.handle(data)
	}
}

func (c *Conn) handle(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("bad server frame")
		return
	}

	switch env.Type {
	case protocol.EvtWelcome:
		var p protocol.Welcome
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.mu.Lock()
		first := c.id == ""
		c.id = p.Identity.ID
		c.identity = p.Identity
		c.stun = p.STUNServers
		c.mu.Unlock()
		if first {
			close(c.welcome)
		}
	case protocol.EvtUpdateUsers:
		var p protocol.UpdateUsers
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.mu.Lock()
		c.users = p.Users
		c.mu.Unlock()
		if c.deps.handlers.OnUsers != nil {
			c.deps.handlers.OnUsers(p.Users)
		}
	case protocol.EvtIncomingCall:
		c.handleIncoming(data)
	case protocol.EvtPeerReady:
		var p protocol.PeerReady
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if m := c.machineFor(p.RoomID); m != nil {
			m.HandlePeerReady()
		}
	case protocol.EvtOffer:
		var p protocol.OfferEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if m := c.machineFor(p.RoomID); m != nil {
			m.HandleOffer(p.Offer)
		}
	case protocol.EvtAnswer:
		var p protocol.AnswerEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if m := c.machineFor(p.RoomID); m != nil {
			m.HandleAnswer(p.Answer)
		}
	case protocol.EvtICECandidate:
		var p protocol.CandidateEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if m := c.machineFor(p.RoomID); m != nil {
			m.HandleCandidate(p.Candidate)
		}
	case protocol.EvtPartnerLeft:
		if m := c.Machine(); m != nil {
			m.HandlePartnerLeft()
		}
		if c.deps.handlers.OnPartnerLeft != nil {
			c.deps.handlers.OnPartnerLeft()
		}
	case protocol.EvtMessage:
		var p protocol.ChatRelay
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if c.deps.handlers.OnChat != nil {
			c.deps.handlers.OnChat(p.ChatMessage)
		}
	case protocol.EvtTyping:
		var p protocol.TypingEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if c.deps.handlers.OnTyping != nil {
			c.deps.handlers.OnTyping(p.IsTyping)
		}
	case protocol.EvtPong, protocol.EvtError:
		// nothing to do
	default:
		log.Warn().Str("module", "client").Str("type", string(env.Type)).Msg("unknown server event")
	}
}

// machineFor returns the current machine only when the relayed frame's
// session matches the attempt; frames for an old or foreign session get nil
// and are dropped by the caller.
func (c *Conn) machineFor(roomID string) *call.Machine {
	m := c.Machine()
	if m == nil || domain.SessionID(roomID) != m.SessionID() {
		return nil
	}
	return m
}

func (c *Conn) handleIncoming(data []byte) {
	var p protocol.IncomingCall
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	inv := call.Invite{
		From:          domain.ConnectionID(p.From),
		Name:          p.Name,
		Avatar:        p.Avatar,
		Authenticated: p.Authenticated,
	}
	// Gate before building anything: a rejected invite must not occupy the
	// call slot or acquire a media engine.
	if !c.deps.policy.Allow(inv) {
		log.Info().Str("module", "client").Str("from", p.From).Msg("invite rejected by policy")
		return
	}
	m, err := c.attach(inv.From, call.RoleCallee, inv)
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Str("from", p.From).Msg("dropping invite")
		return
	}
	m.Ring(inv)
	if c.deps.handlers.OnIncoming != nil {
		c.deps.handlers.OnIncoming(inv)
	}
}

// --- call.Signaler ---

func (c *Conn) JoinRoom(sid domain.SessionID) error {
	return c.send(protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: string(sid)})
}

func (c *Conn) SendPeerReady(sid domain.SessionID) error {
	return c.send(protocol.PeerReady{Type: protocol.EvtPeerReady, RoomID: string(sid)})
}

func (c *Conn) SendOffer(sid domain.SessionID, offer json.RawMessage) error {
	return c.send(protocol.OfferEvent{Type: protocol.EvtOffer, RoomID: string(sid), Offer: offer})
}

func (c *Conn) SendAnswer(sid domain.SessionID, answer json.RawMessage) error {
	return c.send(protocol.AnswerEvent{Type: protocol.EvtAnswer, RoomID: string(sid), Answer: answer})
}

func (c *Conn) SendCandidate(sid domain.SessionID, cand json.RawMessage) error {
	return c.send(protocol.CandidateEvent{Type: protocol.EvtICECandidate, RoomID: string(sid), Candidate: cand})
}

func (c *Conn) SendLeave(sid domain.SessionID) error {
	return c.send(protocol.RoomEvent{Type: protocol.EvtLeaveCall, RoomID: string(sid)})
}
