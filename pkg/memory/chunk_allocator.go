package memory

import (
	"unsafe"

	"go.uber.org/zap"
)

// ChunkAllocator is a bump allocator that carves slots out of a list of
// geometrically growing chunks. Individual slots are never returned; the
// whole arena is reclaimed by Clear.
//
// ChunkAllocator is not safe for concurrent use.
type ChunkAllocator[T any] struct {
	chunks    [][]T // oldest first
	cur       []T   // unused tail of the newest chunk
	capacity  int
	allocated int

	initial  int
	maxSlots int
	logger   *zap.Logger
}

// ChunkStats is a snapshot of a ChunkAllocator.
type ChunkStats struct {
	Chunks    int `json:"chunks"`
	Capacity  int `json:"capacity_slots"`
	Allocated int `json:"allocated_slots"`
	SlotBytes int `json:"slot_bytes"`
}

// NewChunkAllocator creates an empty allocator. The first chunk is created
// lazily by the first Allocate call.
func NewChunkAllocator[T any](opts ...Option) *ChunkAllocator[T] {
	o := newOptions(opts)
	return &ChunkAllocator[T]{
		initial:  o.initialSlots,
		maxSlots: o.maxSlots,
		logger:   o.logger,
	}
}

// Allocate returns count contiguous slots with len and cap equal to count.
// It returns nil when count is not positive or when satisfying the request
// would exceed the allocator's slot cap.
func (a *ChunkAllocator[T]) Allocate(count int) []T {
	if count <= 0 {
		return nil
	}
	if len(a.cur) < count && !a.grow(count) {
		return nil
	}
	slots := a.cur[:count:count]
	a.cur = a.cur[count:]
	a.allocated += count
	return slots
}

func (a *ChunkAllocator[T]) grow(count int) bool {
	n := a.initial
	if a.capacity > 0 {
		n = nextFibonacci(a.capacity)
	}
	if n < count {
		n = count
	}
	if room := a.maxSlots - a.capacity; n > room {
		if room < count {
			return false
		}
		n = room
	}
	a.addChunk(n)
	return true
}

func (a *ChunkAllocator[T]) addChunk(n int) {
	chunk := make([]T, n)
	poisonSlots(chunk)
	a.chunks = append(a.chunks, chunk)
	a.cur = chunk
	a.capacity += n

	a.logger.Debug("chunk allocated",
		zap.Int("slots", n),
		zap.Int("chunks", len(a.chunks)),
		zap.Int("capacity", a.capacity))
}

// Clear releases every chunk and, when the allocator held any memory,
// allocates a single chunk as large as the previous total capacity.
// Slices handed out earlier must not be used afterwards.
func (a *ChunkAllocator[T]) Clear() {
	prev := a.capacity
	for i := len(a.chunks) - 1; i >= 0; i-- {
		poisonSlots(a.chunks[i])
		a.chunks[i] = nil
	}
	a.chunks = a.chunks[:0]
	a.cur = nil
	a.capacity = 0
	a.allocated = 0

	if prev > 0 {
		a.addChunk(prev)
	}
}

// Chunks returns the number of chunks currently owned.
func (a *ChunkAllocator[T]) Chunks() int {
	return len(a.chunks)
}

// Capacity returns the total slot count across all chunks.
func (a *ChunkAllocator[T]) Capacity() int {
	return a.capacity
}

// Allocated returns the number of slots handed out since the last Clear.
func (a *ChunkAllocator[T]) Allocated() int {
	return a.allocated
}

// Stats returns a snapshot of the allocator.
func (a *ChunkAllocator[T]) Stats() ChunkStats {
	var zero T
	return ChunkStats{
		Chunks:    len(a.chunks),
		Capacity:  a.capacity,
		Allocated: a.allocated,
		SlotBytes: int(unsafe.Sizeof(zero)),
	}
}

// nextFibonacci returns the smallest Fibonacci number greater than n.
func nextFibonacci(n int) int {
	a, b := 1, 2
	for b <= n {
		a, b = b, a+b
	}
	return b
}
