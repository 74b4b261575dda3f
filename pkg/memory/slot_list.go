package memory

import (
	"math/bits"
	"runtime"
	"sync/atomic"
)

// maxChunks bounds the chunk table. Chunk k holds base<<k slots, so 32
// chunks cover the whole 32-bit index space for any base.
const maxChunks = 32

// pack encodes a tagged head: the 1-based slot index in the high word, the
// generation in the low word. Index 0 means the list is empty.
func pack(index, generation uint32) uint64 {
	return uint64(index)<<32 | uint64(generation)
}

func unpack(head uint64) (index, generation uint32) {
	return uint32(head >> 32), uint32(head)
}

// slotList is a LIFO free-list of slot indices spread over geometrically
// growing chunks. The head is only ever changed by compare-and-swap; links
// live in per-chunk side arrays so freed memory is never reinterpreted.
type slotList struct {
	head    atomic.Uint64
	_       [7]uint64 //nolint:unused // keep the head on its own cache line
	growing atomic.Bool
	nchunks atomic.Int32
	live    atomic.Int64

	links [maxChunks]atomic.Pointer[[]atomic.Uint32]
	inuse [maxChunks]atomic.Pointer[[]atomic.Bool] // debug builds only

	base     uint64
	maxSlots uint64
	backoff  bool
}

func (l *slotList) init(base, maxSlots int, backoff bool) {
	l.base = uint64(base)
	l.maxSlots = uint64(maxSlots)
	l.backoff = backoff
}

// chunkStart returns the index of the first slot in chunk k.
func (l *slotList) chunkStart(k int) uint32 {
	return uint32(l.base * (1<<uint(k) - 1))
}

// chunkLen returns the slot count of chunk k.
func (l *slotList) chunkLen(k int) int {
	return int(l.base << uint(k))
}

// locate maps a slot index to its chunk and offset.
func (l *slotList) locate(i uint32) (chunk int, offset int) {
	q := uint64(i)/l.base + 1
	k := bits.Len64(q) - 1
	return k, int(uint64(i) - l.base*(1<<uint(k)-1))
}

func (l *slotList) link(i uint32) *atomic.Uint32 {
	k, off := l.locate(i)
	return &(*l.links[k].Load())[off]
}

func (l *slotList) pause() {
	if l.backoff {
		runtime.Gosched()
	}
}

// pop takes the most recently pushed slot.
func (l *slotList) pop() (uint32, bool) {
	for {
		old := l.head.Load()
		idx, gen := unpack(old)
		if idx == 0 {
			return 0, false
		}
		next := l.link(idx - 1).Load()
		if l.head.CompareAndSwap(old, pack(next, gen+1)) {
			return idx - 1, true
		}
		l.pause()
	}
}

// pushChain links first..last (already chained through their links) in
// front of the current head.
func (l *slotList) pushChain(first, last uint32) {
	tail := l.link(last)
	for {
		old := l.head.Load()
		idx, gen := unpack(old)
		tail.Store(idx)
		if l.head.CompareAndSwap(old, pack(first+1, gen+1)) {
			return
		}
		l.pause()
	}
}

// acquire pops a slot, growing the list through grow when it is empty.
// Only the goroutine holding the growing flag calls grow; the others keep
// polling the head. grow receives the chunk number and slot count and
// reports whether backing memory could be obtained.
func (l *slotList) acquire(grow func(k, n int) bool) (uint32, bool) {
	for {
		if i, ok := l.pop(); ok {
			l.markInUse(i)
			l.live.Add(1)
			return i, true
		}
		if !l.growing.CompareAndSwap(false, true) {
			runtime.Gosched()
			continue
		}
		// Another goroutine may have refilled the list while we raced for the flag.
		if idx, _ := unpack(l.head.Load()); idx != 0 {
			l.growing.Store(false)
			continue
		}
		ok := l.grow(grow)
		l.growing.Store(false)
		if !ok {
			return 0, false
		}
	}
}

func (l *slotList) grow(alloc func(k, n int) bool) bool {
	k := int(l.nchunks.Load())
	if k >= maxChunks {
		return false
	}
	n := l.chunkLen(k)
	if l.base*(1<<uint(k+1)-1) > l.maxSlots {
		return false
	}
	start := l.chunkStart(k)
	if !alloc(k, n) {
		return false
	}

	links := make([]atomic.Uint32, n)
	for j := 0; j < n-1; j++ {
		links[j].Store(start + uint32(j) + 2)
	}
	l.links[k].Store(&links)
	if debugEnabled {
		flags := make([]atomic.Bool, n)
		l.inuse[k].Store(&flags)
	}
	l.nchunks.Store(int32(k + 1))
	l.pushChain(start, start+uint32(n)-1)
	return true
}

// release pushes slot i back onto the list.
func (l *slotList) release(i uint32) {
	if debugEnabled {
		k, off := l.locate(i)
		if !(*l.inuse[k].Load())[off].CompareAndSwap(true, false) {
			protocolViolation("double free of slot %d", i)
			return
		}
	}
	l.live.Add(-1)
	l.pushChain(i, i)
}

func (l *slotList) markInUse(i uint32) {
	if !debugEnabled {
		return
	}
	k, off := l.locate(i)
	if !(*l.inuse[k].Load())[off].CompareAndSwap(false, true) {
		protocolViolation("slot %d handed out twice", i)
	}
}

// reset forgets every chunk. Not safe for concurrent use.
func (l *slotList) reset() {
	l.head.Store(0)
	l.live.Store(0)
	for k := 0; k < int(l.nchunks.Load()); k++ {
		l.links[k].Store(nil)
		l.inuse[k].Store(nil)
	}
	l.nchunks.Store(0)
}

func (l *slotList) chunks() int {
	return int(l.nchunks.Load())
}

func (l *slotList) capacity() int {
	k := l.chunks()
	if k == 0 {
		return 0
	}
	return int(l.base * (1<<uint(k) - 1))
}

// inUse reports whether slot i is handed out. Only meaningful in debug
// builds; release builds always report true.
func (l *slotList) inUse(i uint32) bool {
	if !debugEnabled {
		return true
	}
	k, off := l.locate(i)
	return (*l.inuse[k].Load())[off].Load()
}
