package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotListLocate(t *testing.T) {
	for _, base := range []int{1, 3, 8, 64} {
		var l slotList
		l.init(base, MaxSlots, false)
		for k := 0; k < 8; k++ {
			start := l.chunkStart(k)
			for off := 0; off < l.chunkLen(k); off++ {
				gotK, gotOff := l.locate(start + uint32(off))
				require.Equal(t, k, gotK, "base %d index %d", base, start+uint32(off))
				require.Equal(t, off, gotOff)
			}
		}
	}
}

func TestPackUnpack(t *testing.T) {
	idx, gen := unpack(pack(42, 1<<32-1))
	assert.Equal(t, uint32(42), idx)
	assert.Equal(t, uint32(1<<32-1), gen)

	idx, _ = unpack(0)
	assert.Zero(t, idx, "zero head is the empty list")
}

func TestSlotListGenerationAdvances(t *testing.T) {
	var l slotList
	l.init(2, MaxSlots, false)
	grow := func(int, int) bool { return true }

	i, ok := l.acquire(grow)
	require.True(t, ok)
	_, before := unpack(l.head.Load())
	l.release(i)
	j, ok := l.acquire(grow)
	require.True(t, ok)
	_, after := unpack(l.head.Load())

	assert.Equal(t, i, j, "free-list reuse is LIFO")
	assert.Equal(t, before+2, after, "one push and one pop")
}

func TestSlotListGrowthRefused(t *testing.T) {
	var l slotList
	l.init(4, MaxSlots, false)
	_, ok := l.acquire(func(int, int) bool { return false })
	assert.False(t, ok)
	assert.Zero(t, l.chunks())
}
