package client

import (
	"context"
	"fmt"

	"github.com/Girdhari0002/STRANGERFLOW/internal/adapters/rtc"
	"github.com/Girdhari0002/STRANGERFLOW/internal/call"
	"github.com/Girdhari0002/STRANGERFLOW/internal/domain"
)

// RTCMedia is the default pion-backed media factory.
func RTCMedia(ctx context.Context, stunServers []string) MediaFactory {
	return func(sid domain.SessionID) (call.Media, error) {
		conn, err := rtc.NewConnection(rtc.DefaultWebRTCConfig(stunServers), sid)
		if err != nil {
			return nil, fmt.Errorf("rtc connection: %w", err)
		}
		if err := conn.Start(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("rtc start: %w", err)
		}
		return conn, nil
	}
}
