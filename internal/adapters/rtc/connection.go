package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

// Connection wraps a pion PeerConnection for one call attempt. It implements
// call.Media; all methods are driven from the call machine's event loop.
type Connection struct {
	pc  *webrtc.PeerConnection
	sid domain.SessionID

	onICE       func(json.RawMessage)
	onConnected func()
	onClosed    func()
	cancel      context.CancelFunc

	closeOnce sync.Once
}

func DefaultWebRTCConfig(stunServers []string) webrtc.Configuration {
	if len(stunServers) == 0 {
		stunServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
}

func NewConnection(cfg webrtc.Configuration, sid domain.SessionID) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return &Connection{pc: pc, sid: sid}, nil
}

// Start configures internal callbacks and binds the connection lifetime to ctx.
func (c *Connection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("session", string(c.sid)).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("session", string(c.sid)).Str("peer_state", s.String()).Msg("peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			if c.onConnected != nil {
				c.onConnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if c.onClosed != nil {
				c.onClosed()
			}
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || c.onICE == nil {
			return
		}
		raw, err := json.Marshal(cand.ToJSON())
		if err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("marshal candidate")
			return
		}
		c.onICE(raw)
	})

	return nil
}

// OnICECandidate sets a callback for newly gathered local ICE candidates,
// already serialized for the wire.
func (c *Connection) OnICECandidate(fn func(json.RawMessage)) { c.onICE = fn }

// OnConnected sets the callback for the transport reaching a connected state.
func (c *Connection) OnConnected(fn func()) { c.onConnected = fn }

// OnClosed sets a callback for cleanup when the transport dies underneath us.
func (c *Connection) OnClosed(fn func()) { c.onClosed = fn }

// CreateOffer builds the local description, waits for candidate gathering and
// returns the final offer for the wire.
func (c *Connection) CreateOffer() (json.RawMessage, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	<-gatherComplete
	return json.Marshal(c.pc.LocalDescription())
}

// AcceptOffer sets the remote description and returns the gathered answer.
func (c *Connection) AcceptOffer(raw json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	<-gatherComplete
	return json.Marshal(c.pc.LocalDescription())
}

// AcceptAnswer sets the remote description on the initiator side.
func (c *Connection) AcceptAnswer(raw json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// AddCandidate applies a remote ICE candidate.
func (c *Connection) AddCandidate(raw json.RawMessage) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &cand); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return c.pc.AddICECandidate(cand)
}

// Close stops the underlying transport. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.pc != nil {
			if err := c.pc.Close(); err != nil {
				log.Error().Err(err).Str("module", "rtc").Str("session", string(c.sid)).Msg("close error")
			} else {
				log.Info().Str("module", "rtc").Str("session", string(c.sid)).Msg("closed")
			}
		}
	})
}
