package terminal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferEviction(t *testing.T) {
	r := newRingBuffer(8)

	r.append([]byte("abcd"))
	assert.Equal(t, []byte("abcd"), r.snapshot())

	r.append([]byte("efgh"))
	assert.Equal(t, []byte("abcdefgh"), r.snapshot())

	// Oldest bytes go first.
	r.append([]byte("ij"))
	assert.Equal(t, []byte("cdefghij"), r.snapshot())
}

func TestRingBufferOversizedChunk(t *testing.T) {
	r := newRingBuffer(4)
	r.append([]byte("abcdefgh"))
	assert.Equal(t, []byte("efgh"), r.snapshot())
}

func TestRingBufferNeverExceedsCapacity(t *testing.T) {
	r := newRingBuffer(64)
	chunk := bytes.Repeat([]byte("x"), 17)
	for i := 0; i < 100; i++ {
		r.append(chunk)
		assert.LessOrEqual(t, r.len(), 64)
	}
}

func TestRingBufferSnapshotIsACopy(t *testing.T) {
	r := newRingBuffer(16)
	r.append([]byte("stable"))

	snap := r.snapshot()
	r.append([]byte(" mutated"))

	assert.Equal(t, []byte("stable"), snap)
}

func TestRingBufferDefaultCapacity(t *testing.T) {
	r := newRingBuffer(0)
	assert.Equal(t, DefaultHistoryBytes, r.maxBytes)
}
