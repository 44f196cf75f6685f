package rtc

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Girdhari0002/STRANGERFLOW/internal/call"
)

// Acquire runs the device ladder: audio+video first, audio-only on a video
// failure, signaling-only when nothing attaches. A partial failure degrades
// the call; it never aborts it.
func (c *Connection) Acquire() call.MediaMode {
	audio, audioErr := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "strangerflow",
	)
	if audioErr == nil {
		_, audioErr = c.pc.AddTrack(audio)
	}
	if audioErr != nil {
		log.Warn().Err(audioErr).Str("module", "rtc").Str("session", string(c.sid)).Msg("audio acquisition failed, signaling only")
		return call.MediaNone
	}

	video, videoErr := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "strangerflow",
	)
	if videoErr == nil {
		_, videoErr = c.pc.AddTrack(video)
	}
	if videoErr != nil {
		log.Warn().Err(videoErr).Str("module", "rtc").Str("session", string(c.sid)).Msg("video acquisition failed, audio only")
		return call.MediaAudioOnly
	}

	return call.MediaFull
}
