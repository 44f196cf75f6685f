package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/Girdhari0002/STRANGERFLOW/internal/adapters/http"
	"github.com/Girdhari0002/STRANGERFLOW/internal/app"
	"github.com/Girdhari0002/STRANGERFLOW/internal/call"
	"github.com/Girdhari0002/STRANGERFLOW/internal/config"
	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

// stubMedia negotiates with canned descriptions; no real transport behind it.
type stubMedia struct {
	mu         sync.Mutex
	candidates int
	closed     bool
}

func (s *stubMedia) Acquire() call.MediaMode { return call.MediaAudioOnly }

func (s *stubMedia) CreateOffer() (json.RawMessage, error) {
	return json.RawMessage(`{"type":"offer","sdp":"v=0"}`), nil
}

func (s *stubMedia) AcceptOffer(offer json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"type":"answer","sdp":"v=0"}`), nil
}

func (s *stubMedia) AcceptAnswer(answer json.RawMessage) error { return nil }

func (s *stubMedia) AddCandidate(cand json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates++
	return nil
}

func (s *stubMedia) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func stubFactory(sid domain.SessionID) (call.Media, error) { return &stubMedia{}, nil }

func startServer(t *testing.T) string {
	t.Helper()
	cfg := &config.Config{
		Mode:        "release",
		StaticPath:  t.TempDir(),
		ReadLimit:   32 << 10,
		PingPeriod:  54 * time.Second,
		Secret:      "test-secret",
		STUNServers: []string{"stun:stun.test:3478"},
	}
	relay := app.NewRelay(app.NewRegistry(), app.NewSessionTable(), app.SimplePolicy{})
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(httpadapter.SetupRouter(ctx, cfg, relay))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
}

func dialClient(t *testing.T, url string, opts Options) *Conn {
	t.Helper()
	if opts.Media == nil {
		opts.Media = stubFactory
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	c, err := Dial(ctx, url, opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestDialReceivesWelcome(t *testing.T) {
	url := startServer(t)
	c := dialClient(t, url, Options{})

	require.NotEmpty(t, c.ID())
	ident := c.Identity()
	assert.Equal(t, c.ID(), ident.ID)
	assert.Equal(t, domain.DefaultDisplayName, ident.Name)
	assert.NotEmpty(t, ident.Avatar)
	assert.Equal(t, []string{"stun:stun.test:3478"}, c.STUNServers(),
		"welcome must announce the server's configured STUN list")
}

func TestPresencePropagates(t *testing.T) {
	url := startServer(t)

	var mu sync.Mutex
	var bobSaw []domain.Identity
	alice := dialClient(t, url, Options{})
	_ = dialClient(t, url, Options{Handlers: Handlers{
		OnUsers: func(users []domain.Identity) {
			mu.Lock()
			bobSaw = users
			mu.Unlock()
		},
	}})

	require.NoError(t, alice.Register("Alice", "", ""))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, u := range bobSaw {
			if u.ID == alice.ID() && u.Name == "Alice" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond, "registered name never reached the other client")
}

func TestFullCallFlow(t *testing.T) {
	url := startServer(t)

	var mu sync.Mutex
	var bobInvite *call.Invite
	var bobChat []domain.ChatMessage
	bobPartnerLeft := make(chan struct{}, 4)

	alice := dialClient(t, url, Options{})
	bob := dialClient(t, url, Options{Handlers: Handlers{
		OnIncoming: func(inv call.Invite) {
			mu.Lock()
			cp := inv
			bobInvite = &cp
			mu.Unlock()
		},
		OnChat: func(msg domain.ChatMessage) {
			mu.Lock()
			bobChat = append(bobChat, msg)
			mu.Unlock()
		},
		OnPartnerLeft: func() { bobPartnerLeft <- struct{}{} },
	}})

	require.NoError(t, alice.Register("Alice", "", ""))

	aliceMachine, err := alice.CallPeer(bob.ID())
	require.NoError(t, err)

	// Bob rings with the caller's registered identity attached.
	require.Eventually(t, func() bool {
		m := bob.Machine()
		return m != nil && m.State() == call.StateRinging
	}, 5*time.Second, 20*time.Millisecond)
	mu.Lock()
	require.NotNil(t, bobInvite)
	assert.Equal(t, alice.ID(), bobInvite.From)
	assert.Equal(t, "Alice", bobInvite.Name)
	mu.Unlock()

	// Both sides derive the same session before any signaling crossed.
	require.Equal(t, aliceMachine.SessionID(), bob.Machine().SessionID())

	bob.Accept()

	// peer-ready -> offer -> answer relays through the server; both sides
	// settle in Negotiating with descriptions exchanged.
	require.Eventually(t, func() bool {
		return aliceMachine.State() == call.StateNegotiating &&
			bob.Machine().State() == call.StateNegotiating
	}, 5*time.Second, 20*time.Millisecond)

	aliceMachine.HandleConnected()
	bob.Machine().HandleConnected()
	require.Eventually(t, func() bool {
		return aliceMachine.State() == call.StateActive &&
			bob.Machine().State() == call.StateActive
	}, 5*time.Second, 20*time.Millisecond)

	// Chat relays with the partner annotation, never echoed to the sender.
	require.NoError(t, alice.SendChat("hi bob"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bobChat) == 1
	}, 5*time.Second, 20*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "hi bob", bobChat[0].Text)
	assert.Equal(t, "partner", bobChat[0].Sender)
	mu.Unlock()

	// Voluntary hangup: Bob learns via partner-left and his attempt ends.
	alice.Hangup()
	select {
	case <-bobPartnerLeft:
	case <-time.After(5 * time.Second):
		t.Fatal("partner-left never reached the callee")
	}
	require.Eventually(t, func() bool {
		return bob.Machine().State() == call.StateEnded
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, call.StateEnded, aliceMachine.State())
}

func TestAbruptDisconnectNotifiesPartner(t *testing.T) {
	url := startServer(t)

	partnerLeft := make(chan struct{}, 4)
	alice := dialClient(t, url, Options{})
	bob := dialClient(t, url, Options{Handlers: Handlers{
		OnPartnerLeft: func() { partnerLeft <- struct{}{} },
	}})

	aliceMachine, err := alice.CallPeer(bob.ID())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		m := bob.Machine()
		return m != nil && m.State() == call.StateRinging
	}, 5*time.Second, 20*time.Millisecond)
	bob.Accept()
	require.Eventually(t, func() bool {
		return aliceMachine.State() == call.StateNegotiating &&
			bob.Machine().State() == call.StateNegotiating
	}, 5*time.Second, 20*time.Millisecond)

	// Alice's socket dies without a leave-call; the server's disconnect path
	// must still tell Bob exactly once.
	alice.Close()
	select {
	case <-partnerLeft:
	case <-time.After(5 * time.Second):
		t.Fatal("partner-left never fired after abrupt close")
	}
	require.Eventually(t, func() bool {
		return bob.Machine().State() == call.StateEnded
	}, 5*time.Second, 20*time.Millisecond)

	select {
	case <-partnerLeft:
		t.Fatal("partner-left fired more than once")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRejectedInviteLeavesClientFree(t *testing.T) {
	url := startServer(t)

	var built atomic.Int32
	countingFactory := func(sid domain.SessionID) (call.Media, error) {
		built.Add(1)
		return &stubMedia{}, nil
	}

	alice := dialClient(t, url, Options{})
	bob := dialClient(t, url, Options{
		Media:  countingFactory,
		Policy: call.RequireAuthenticated{},
	})
	carol := dialClient(t, url, Options{})

	// Alice carries no account cookie, so Bob's policy refuses the ring.
	_, err := alice.CallPeer(bob.ID())
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	assert.Nil(t, bob.Machine(), "a refused invite must not occupy the call slot")
	assert.Equal(t, int32(0), built.Load(), "a refused invite must not build a media engine")

	// Bob stays free to place his own call afterwards.
	m, err := bob.CallPeer(carol.ID())
	require.NoError(t, err)
	assert.Equal(t, call.RoleInitiator, m.Role())
	require.Eventually(t, func() bool {
		cm := carol.Machine()
		return cm != nil && cm.State() == call.StateRinging
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), built.Load())
}

func TestStaleSessionFramesIgnored(t *testing.T) {
	c := &Conn{id: "conn-a"}
	require.Nil(t, c.machineFor("room-conn-a-conn-b"), "no attempt means no machine")

	m := call.NewOutgoing("conn-a", "conn-b", &stubMedia{}, c)
	c.machine = m

	assert.Equal(t, m, c.machineFor(string(m.SessionID())))
	assert.Nil(t, c.machineFor("room-conn-a-conn-z"), "frames for a foreign session are dropped")
	assert.Nil(t, c.machineFor(""))
}

func TestSecondCallWhileBusyRejected(t *testing.T) {
	url := startServer(t)

	alice := dialClient(t, url, Options{})
	bob := dialClient(t, url, Options{})

	_, err := alice.CallPeer(bob.ID())
	require.NoError(t, err)

	_, err = alice.CallPeer(bob.ID())
	assert.Error(t, err, "an in-flight attempt must block a second one")
}
