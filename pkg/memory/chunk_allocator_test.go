package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slot16 [16]byte

func TestChunkAllocatorSecondChunk(t *testing.T) {
	a := NewChunkAllocator[slot16](WithInitialSlots(8))
	require.Zero(t, a.Chunks(), "first chunk is created lazily")

	seen := make(map[*slot16]bool)
	for i := 0; i < 8; i++ {
		s := a.Allocate(1)
		require.Len(t, s, 1)
		seen[&s[0]] = true
	}
	assert.Equal(t, 1, a.Chunks())
	assert.Equal(t, 8, a.Capacity())

	ninth := a.Allocate(1)
	require.NotNil(t, ninth)
	assert.False(t, seen[&ninth[0]], "ninth slot aliases an earlier one")
	assert.Equal(t, 2, a.Chunks())
	assert.Equal(t, 8+13, a.Capacity())
	assert.Equal(t, 9, a.Allocated())
}

func TestChunkAllocatorLargeRequest(t *testing.T) {
	a := NewChunkAllocator[int](WithInitialSlots(4))
	s := a.Allocate(100)
	require.Len(t, s, 100)
	assert.Equal(t, 100, cap(s))
	assert.Equal(t, 1, a.Chunks())
	assert.Equal(t, 100, a.Capacity())

	s2 := a.Allocate(3)
	require.Len(t, s2, 3)
	assert.Equal(t, 2, a.Chunks())
}

func TestChunkAllocatorInvalidCount(t *testing.T) {
	a := NewChunkAllocator[int]()
	assert.Nil(t, a.Allocate(0))
	assert.Nil(t, a.Allocate(-1))
	assert.Zero(t, a.Chunks())
}

func TestChunkAllocatorMaxSlots(t *testing.T) {
	a := NewChunkAllocator[int](WithInitialSlots(8), WithMaxSlots(10))
	require.NotNil(t, a.Allocate(8))
	require.NotNil(t, a.Allocate(1), "last chunk is clipped to the remaining room")
	assert.Equal(t, 10, a.Capacity())
	assert.Nil(t, a.Allocate(2))
	assert.NotNil(t, a.Allocate(1))
	assert.Nil(t, a.Allocate(1))
}

func TestChunkAllocatorClear(t *testing.T) {
	a := NewChunkAllocator[int](WithInitialSlots(4))
	for i := 0; i < 20; i++ {
		a.Allocate(1)
	}
	prev := a.Capacity()
	require.Greater(t, a.Chunks(), 1)

	a.Clear()
	assert.Equal(t, 1, a.Chunks())
	assert.Equal(t, prev, a.Capacity())
	assert.Zero(t, a.Allocated())

	// The merged chunk serves the old working set without growing.
	for i := 0; i < prev; i++ {
		require.NotNil(t, a.Allocate(1))
	}
	assert.Equal(t, 1, a.Chunks())
}

func TestChunkAllocatorClearEmpty(t *testing.T) {
	a := NewChunkAllocator[int]()
	a.Clear()
	assert.Zero(t, a.Chunks())
	assert.Zero(t, a.Capacity())
}

func TestChunkAllocatorStats(t *testing.T) {
	a := NewChunkAllocator[slot16](WithInitialSlots(8))
	a.Allocate(3)
	assert.Equal(t, ChunkStats{Chunks: 1, Capacity: 8, Allocated: 3, SlotBytes: 16}, a.Stats())
}

func TestChunkAllocatorPoisonsBytes(t *testing.T) {
	if !debugEnabled {
		t.Skip("sentinel fill only happens with -tags debug")
	}
	a := NewChunkAllocator[byte](WithInitialSlots(16))
	b := a.Allocate(16)
	for _, v := range b {
		require.Equal(t, Sentinel, v)
	}
}

func TestNextFibonacci(t *testing.T) {
	cases := map[int]int{0: 2, 1: 2, 2: 3, 3: 5, 8: 13, 13: 21, 20: 21, 100: 144}
	for in, want := range cases {
		assert.Equal(t, want, nextFibonacci(in), "nextFibonacci(%d)", in)
	}
}
