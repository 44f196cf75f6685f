package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/core"
	"github.com/Girdhari0002/STRANGERFLOW/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, st *connState, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(st.id)).Msg("readPump closing")
		ctl.teardown(st)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(st.id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(st.id)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(st, data)
		}
	}
}

// handleSignal dispatches one inbound event. Events from one connection are
// processed here, in arrival order, by the connection's own read goroutine.
func (ctl *SignalWSController) handleSignal(st *connState, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case protocol.EvtRegisterUser:
		ctl.handleRegisterUser(st, data)
	case protocol.EvtJoinRoom:
		ctl.handleJoinRoom(st, data)
	case protocol.EvtMessage:
		ctl.handleMessage(st, data)
	case protocol.EvtTyping:
		ctl.handleTyping(st, data)
	case protocol.EvtOffer:
		ctl.handleOffer(st, data)
	case protocol.EvtAnswer:
		ctl.handleAnswer(st, data)
	case protocol.EvtICECandidate:
		ctl.handleCandidate(st, data)
	case protocol.EvtCallUser:
		ctl.handleCallUser(st, data)
	case protocol.EvtPeerReady:
		ctl.handlePeerReady(st, data)
	case protocol.EvtLeaveCall:
		ctl.handleLeaveCall(st, data)
	case protocol.EvtPing:
		ctl.handlePing(st.conn)
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// encode marshals a server event for fan-out; a marshal failure is a
// programming error and yields a nil frame the relay will skip.
func encode(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode marshal")
		return nil
	}
	return b
}
