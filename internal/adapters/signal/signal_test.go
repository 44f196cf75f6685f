package signal

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Girdhari0002/STRANGERFLOW/internal/app"
	"github.com/Girdhari0002/STRANGERFLOW/internal/core"
	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
	"github.com/Girdhari0002/STRANGERFLOW/internal/protocol"
)

// recordConn collects every outbound frame so tests can assert on delivery.
type recordConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *recordConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordConn) Close() {}

// byType returns the decoded frames matching one event kind.
func (c *recordConn) byType(t *testing.T, kind protocol.EventType) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		if m["type"] == string(kind) {
			out = append(out, m)
		}
	}
	return out
}

func (c *recordConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestController() *SignalWSController {
	relay := app.NewRelay(app.NewRegistry(), app.NewSessionTable(), app.SimplePolicy{})
	return NewSignalWSController(relay)
}

// join wires a fake connection into the controller the way HandleSignal does,
// minus the websocket upgrade.
func join(ctl *SignalWSController, id domain.ConnectionID, authenticated bool) (*connState, *recordConn) {
	conn := &recordConn{}
	st := &connState{id: id, conn: conn, authenticated: authenticated}
	ident := ctl.Relay.Connect(core.NewPeer(id, conn))
	ctl.sendWelcome(st, ident)
	ctl.broadcastPresence()
	return st, conn
}

func event(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestRegisterBroadcastsPresence(t *testing.T) {
	ctl := newTestController()
	alice, aConn := join(ctl, "conn-a", false)
	_, bConn := join(ctl, "conn-b", false)

	ctl.handleSignal(alice, event(t, protocol.RegisterUser{
		Type: protocol.EvtRegisterUser, Name: "Alice",
	}))

	for _, conn := range []*recordConn{aConn, bConn} {
		updates := conn.byType(t, protocol.EvtUpdateUsers)
		require.NotEmpty(t, updates)
		last := updates[len(updates)-1]
		users := last["users"].([]any)
		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, u.(map[string]any)["name"].(string))
		}
		assert.Contains(t, names, "Alice")
	}
}

// Register applies whatever name the client supplies; the relay does not
// judge content, it only relays.
func TestRegisterEmptyNameOverwrites(t *testing.T) {
	ctl := newTestController()
	alice, aConn := join(ctl, "conn-a", false)

	ctl.handleSignal(alice, event(t, protocol.RegisterUser{
		Type: protocol.EvtRegisterUser, Name: "",
	}))

	assert.Empty(t, aConn.byType(t, protocol.EvtError))
	ident, ok := ctl.Relay.Registry.Identity("conn-a")
	require.True(t, ok)
	assert.Equal(t, "", ident.Name)

	updates := aConn.byType(t, protocol.EvtUpdateUsers)
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	users := last["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "", users[0].(map[string]any)["name"])
}

func TestMessageRelayAnnotates(t *testing.T) {
	ctl := newTestController()
	alice, aConn := join(ctl, "conn-a", false)
	bob, bConn := join(ctl, "conn-b", false)

	sid := string(domain.DeriveSessionID("conn-a", "conn-b"))
	ctl.handleSignal(alice, event(t, protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: sid}))
	ctl.handleSignal(bob, event(t, protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: sid}))

	ctl.handleSignal(alice, event(t, protocol.ChatSend{
		Type: protocol.EvtMessage, RoomID: sid, Text: "hello there",
	}))

	msgs := bConn.byType(t, protocol.EvtMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello there", msgs[0]["text"])
	assert.Equal(t, "partner", msgs[0]["sender"])
	_, err := time.Parse(domain.ChatTimeLayout, msgs[0]["time"].(string))
	assert.NoError(t, err)

	assert.Empty(t, aConn.byType(t, protocol.EvtMessage), "sender never hears its own chat")
}

func TestMalformedEventsDroppedSilently(t *testing.T) {
	ctl := newTestController()
	alice, aConn := join(ctl, "conn-a", false)
	before := aConn.count()

	ctl.handleSignal(alice, []byte(`not json at all`))
	ctl.handleSignal(alice, []byte(`{"type":"message"}`))       // no roomId
	ctl.handleSignal(alice, []byte(`{"type":"no-such-event"}`)) // unknown kind
	ctl.handleSignal(alice, []byte(`{"type":"call-user"}`))     // no target

	assert.Equal(t, before, aConn.count(), "malformed events must produce no traffic")
}

func TestCallUserRingsTargetOnly(t *testing.T) {
	ctl := newTestController()
	alice, aConn := join(ctl, "conn-a", true)
	_, bConn := join(ctl, "conn-b", false)
	_, cConn := join(ctl, "conn-c", false)

	ctl.handleSignal(alice, event(t, protocol.RegisterUser{
		Type: protocol.EvtRegisterUser, Name: "Alice",
	}))
	ctl.handleSignal(alice, event(t, protocol.CallUser{
		Type: protocol.EvtCallUser, To: "conn-b",
	}))

	rings := bConn.byType(t, protocol.EvtIncomingCall)
	require.Len(t, rings, 1)
	assert.Equal(t, "conn-a", rings[0]["from"])
	assert.Equal(t, "Alice", rings[0]["name"])
	assert.Equal(t, true, rings[0]["authenticated"])

	assert.Empty(t, cConn.byType(t, protocol.EvtIncomingCall))
	assert.Empty(t, aConn.byType(t, protocol.EvtIncomingCall))
}

func TestCallUserRateLimited(t *testing.T) {
	ctl := newTestController()
	ctl.Invites = NewInviteLimiter(2, time.Minute)
	alice, _ := join(ctl, "conn-a", false)
	_, bConn := join(ctl, "conn-b", false)

	for i := 0; i < 5; i++ {
		ctl.handleSignal(alice, event(t, protocol.CallUser{
			Type: protocol.EvtCallUser, To: "conn-b",
		}))
	}
	assert.Len(t, bConn.byType(t, protocol.EvtIncomingCall), 2)
}

func TestPeerReadyStampsSender(t *testing.T) {
	ctl := newTestController()
	alice, aConn := join(ctl, "conn-a", false)
	bob, _ := join(ctl, "conn-b", false)

	sid := string(domain.DeriveSessionID("conn-a", "conn-b"))
	ctl.handleSignal(alice, event(t, protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: sid}))
	ctl.handleSignal(bob, event(t, protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: sid}))

	ctl.handleSignal(bob, event(t, protocol.PeerReady{Type: protocol.EvtPeerReady, RoomID: sid}))

	ready := aConn.byType(t, protocol.EvtPeerReady)
	require.Len(t, ready, 1)
	assert.Equal(t, "conn-b", ready[0]["id"])
	assert.Equal(t, sid, ready[0]["roomId"])
}

func TestNegotiationPayloadForwardedVerbatim(t *testing.T) {
	ctl := newTestController()
	alice, _ := join(ctl, "conn-a", false)
	bob, bConn := join(ctl, "conn-b", false)

	sid := string(domain.DeriveSessionID("conn-a", "conn-b"))
	ctl.handleSignal(alice, event(t, protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: sid}))
	ctl.handleSignal(bob, event(t, protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: sid}))

	offer := `{"type":"offer","sdp":"v=0\r\no=- 1 2 IN IP4 0.0.0.0"}`
	ctl.handleSignal(alice, []byte(fmt.Sprintf(`{"type":"offer","roomId":%q,"offer":%s}`, sid, offer)))

	got := bConn.byType(t, protocol.EvtOffer)
	require.Len(t, got, 1)
	assert.Equal(t, sid, got[0]["roomId"], "relayed frames must echo the session for receiver-side matching")
	inner, err := json.Marshal(got[0]["offer"])
	require.NoError(t, err)
	assert.JSONEq(t, offer, string(inner))
}

func TestLeaveCallIdempotent(t *testing.T) {
	ctl := newTestController()
	alice, _ := join(ctl, "conn-a", false)
	bob, bConn := join(ctl, "conn-b", false)

	sid := string(domain.DeriveSessionID("conn-a", "conn-b"))
	ctl.handleSignal(alice, event(t, protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: sid}))
	ctl.handleSignal(bob, event(t, protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: sid}))

	ctl.handleSignal(alice, event(t, protocol.RoomEvent{Type: protocol.EvtLeaveCall, RoomID: sid}))
	ctl.handleSignal(alice, event(t, protocol.RoomEvent{Type: protocol.EvtLeaveCall, RoomID: sid}))

	assert.Len(t, bConn.byType(t, protocol.EvtPartnerLeft), 1, "duplicate leave must not re-notify")
}

func TestTeardownNotifiesSurvivorsOnce(t *testing.T) {
	ctl := newTestController()
	alice, _ := join(ctl, "conn-a", false)
	_, bConn := join(ctl, "conn-b", false)

	sid := string(domain.DeriveSessionID("conn-a", "conn-b"))
	ctl.handleSignal(alice, event(t, protocol.RoomEvent{Type: protocol.EvtJoinRoom, RoomID: sid}))
	bobPeer, _ := ctl.Relay.Peer("conn-b")
	ctl.Relay.Sessions.Join(domain.SessionID(sid), bobPeer)

	ctl.teardown(alice)
	ctl.teardown(alice) // abrupt close paths can race the read error path

	assert.Len(t, bConn.byType(t, protocol.EvtPartnerLeft), 1)
	assert.Equal(t, 1, ctl.Relay.Registry.Count())

	// Survivor's presence view no longer contains the leaver.
	updates := bConn.byType(t, protocol.EvtUpdateUsers)
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Len(t, last["users"].([]any), 1)
}

func TestPingPong(t *testing.T) {
	ctl := newTestController()
	alice, aConn := join(ctl, "conn-a", false)

	ctl.handleSignal(alice, []byte(`{"type":"ping"}`))
	assert.Len(t, aConn.byType(t, protocol.EvtPong), 1)
}
