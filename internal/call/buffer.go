package call

import "encoding/json"

// CandidateBuffer holds connectivity candidates that arrive before the remote
// negotiation description is known. It is owned by the machine's event loop
// and never shared.
type CandidateBuffer struct {
	queue   []json.RawMessage
	drained bool
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{}
}

// Push appends a candidate in arrival order.
func (b *CandidateBuffer) Push(cand json.RawMessage) {
	b.queue = append(b.queue, cand)
}

// Drain hands back all buffered candidates in arrival order, exactly once.
// After the first drain the buffer is spent: candidates arriving later are
// applied immediately by the machine and never pass through here again.
func (b *CandidateBuffer) Drain() []json.RawMessage {
	if b.drained {
		return nil
	}
	b.drained = true
	out := b.queue
	b.queue = nil
	return out
}

// Drained reports whether the one-shot drain already happened.
func (b *CandidateBuffer) Drained() bool { return b.drained }

// Len reports how many candidates are waiting.
func (b *CandidateBuffer) Len() int { return len(b.queue) }
