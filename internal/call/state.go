// Package call implements the per-attempt call lifecycle state machine that
// drives offer/answer/candidate exchange over the signaling relay. Every
// external callback becomes a message on the machine's event queue, processed
// one at a time, so a late candidate can never race a not-yet-set remote
// description.
package call

// State is the lifecycle position of one call attempt on one side.
type State int32

const (
	StateIdle State = iota
	StateRinging
	StateNegotiating
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRinging:
		return "ringing"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Role marks which side placed the call. Only the initiator ever creates the
// offer; the callee answers and signals readiness first.
type Role int

const (
	RoleInitiator Role = iota
	RoleCallee
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "callee"
}

// MediaMode is the outcome of local device acquisition. Acquisition failure is
// never fatal: the call still reaches Active for text chat.
type MediaMode int

const (
	MediaNone MediaMode = iota
	MediaAudioOnly
	MediaFull
)

func (m MediaMode) String() string {
	switch m {
	case MediaFull:
		return "audio+video"
	case MediaAudioOnly:
		return "audio-only"
	default:
		return "signaling-only"
	}
}
