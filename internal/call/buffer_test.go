package call

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateBufferDrainOrder(t *testing.T) {
	b := NewCandidateBuffer()
	b.Push(json.RawMessage(`{"n":1}`))
	b.Push(json.RawMessage(`{"n":2}`))
	b.Push(json.RawMessage(`{"n":3}`))
	require.Equal(t, 3, b.Len())

	out := b.Drain()
	require.Len(t, out, 3)
	assert.JSONEq(t, `{"n":1}`, string(out[0]))
	assert.JSONEq(t, `{"n":2}`, string(out[1]))
	assert.JSONEq(t, `{"n":3}`, string(out[2]))
}

func TestCandidateBufferDrainOnce(t *testing.T) {
	b := NewCandidateBuffer()
	b.Push(json.RawMessage(`{}`))

	assert.False(t, b.Drained())
	assert.Len(t, b.Drain(), 1)
	assert.True(t, b.Drained())

	// Spent buffers stay empty even if pushed into again.
	b.Push(json.RawMessage(`{}`))
	assert.Nil(t, b.Drain())
}

func TestCandidateBufferEmptyDrain(t *testing.T) {
	b := NewCandidateBuffer()
	assert.Empty(t, b.Drain())
	assert.True(t, b.Drained())
}
