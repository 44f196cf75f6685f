package core

import "github.com/Girdhari0002/STRANGERFLOW/internal/domain"

// Peer binds a connection's identity to its transport endpoint.
// This is what the presence registry and session table store and fan out to.
type Peer interface {
	ID() domain.ConnectionID
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the relay.
type PublishResult struct {
	SentTo  int
	Dropped []Peer
}
