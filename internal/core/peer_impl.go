package core

import "github.com/Girdhari0002/STRANGERFLOW/internal/domain"

// peer implements Peer by pairing a connection id + transport.
type peer struct {
	id   domain.ConnectionID
	conn SignalConnection
}

func NewPeer(id domain.ConnectionID, conn SignalConnection) Peer {
	return &peer{id: id, conn: conn}
}

func (p *peer) ID() domain.ConnectionID  { return p.id }
func (p *peer) Signal() SignalConnection { return p.conn }
