package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/app"
	"github.com/Girdhari0002/STRANGERFLOW/internal/core"
	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// SignalWSController owns the websocket side of the relay: one upgraded
// connection per client, a buffered outbound queue each, and the JSON
// envelope dispatch.
type SignalWSController struct {
	Relay       *app.Relay
	Invites     *InviteLimiter
	ReadLimit   int64
	PingPeriod  time.Duration
	STUNServers []string
}

func NewSignalWSController(relay *app.Relay) *SignalWSController {
	return &SignalWSController{
		Relay:      relay,
		Invites:    NewInviteLimiter(8, time.Minute),
		ReadLimit:  32 << 10,
		PingPeriod: 54 * time.Second,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// connState carries everything the handlers need about one connection. The
// conn is held as the interface to ease testing.
type connState struct {
	id            domain.ConnectionID
	conn          core.SignalConnection
	authenticated bool
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection lifecycle: a fresh
// connection id is minted here, the presence registry gets its provisional
// stranger entry, and the updated presence list fans out to everyone.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	id := domain.ConnectionID(uuid.NewString())
	authenticated := sessions.Default(c).Get("account") != nil
	log.Info().Str("module", "signal").Str("conn", string(id)).Bool("authenticated", authenticated).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	st := &connState{id: id, conn: conn, authenticated: authenticated}

	ident := ctl.Relay.Connect(core.NewPeer(id, conn))
	ctl.sendWelcome(st, ident)
	ctl.broadcastPresence()

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, st, conn)
}
