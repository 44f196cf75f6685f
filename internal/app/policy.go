package app

import "github.com/Girdhari0002/STRANGERFLOW/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickPeer
	DropFrame
)

// Policy decides what happens to a peer whose outbound queue is full.
type Policy interface {
	OnBackPressure(peer core.Peer) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(peer core.Peer) BackpressureAction {
	return KickPeer
}
