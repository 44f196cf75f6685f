package signal

import (
	"github.com/Girdhari0002/STRANGERFLOW/internal/core"
	"github.com/Girdhari0002/STRANGERFLOW/internal/protocol"
)

func (ctl *SignalWSController) handlePing(conn core.SignalConnection) {
	ctl.sendJSON(conn, protocol.Envelope{Type: protocol.EvtPong})
}
