package memory

import (
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

// LockFreeAllocator hands out fixed-size slots of type T to any number of
// goroutines. Free slots sit on a LIFO list whose head is updated only by
// compare-and-swap; a new chunk, twice the size of the previous one, is
// added by a single goroutine when the list runs dry.
type LockFreeAllocator[T any] struct {
	list     slotList
	chunks   [maxChunks]atomic.Pointer[[]T]
	slotSize uintptr
	logger   *zap.Logger
}

// AllocatorStats is a snapshot of a LockFreeAllocator.
type AllocatorStats struct {
	Chunks    int `json:"chunks"`
	Capacity  int `json:"capacity_slots"`
	Live      int `json:"live_slots"`
	SlotBytes int `json:"slot_bytes"`
}

// NewLockFreeAllocator creates an empty allocator. It panics if T has zero
// size, since distinct slots could not be told apart by address.
func NewLockFreeAllocator[T any](opts ...Option) *LockFreeAllocator[T] {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		panic("memory: LockFreeAllocator requires a non-zero-size slot type")
	}
	o := newOptions(opts)
	a := &LockFreeAllocator[T]{slotSize: size, logger: o.logger}
	a.list.init(o.initialSlots, o.maxSlots, o.backoff)
	return a
}

// Allocate returns a zeroed slot, or nil when no chunk can be added
// without exceeding the slot cap.
func (a *LockFreeAllocator[T]) Allocate() *T {
	i, ok := a.list.acquire(a.grow)
	if !ok {
		return nil
	}
	k, off := a.list.locate(i)
	return &(*a.chunks[k].Load())[off]
}

func (a *LockFreeAllocator[T]) grow(k, n int) bool {
	chunk := make([]T, n)
	a.chunks[k].Store(&chunk)
	a.logger.Debug("chunk allocated",
		zap.Int("chunk", k),
		zap.Int("slots", n),
		zap.Int("capacity", a.list.capacity()+n))
	return true
}

// Deallocate returns p to the free-list after resetting it to the zero
// value. A nil p is ignored. Releasing a pointer twice, or one this
// allocator did not hand out, panics in debug builds and is undefined
// otherwise; a foreign pointer is dropped.
func (a *LockFreeAllocator[T]) Deallocate(p *T) {
	if p == nil {
		return
	}
	i, ok := a.index(p)
	if !ok {
		protocolViolation("pointer %p not owned by allocator", p)
		return
	}
	var zero T
	*p = zero
	a.list.release(i)
}

// index finds the slot index of p by scanning owned chunk ranges, newest
// first. Only addresses are compared; no integer is turned back into a
// pointer.
func (a *LockFreeAllocator[T]) index(p *T) (uint32, bool) {
	addr := uintptr(unsafe.Pointer(p))
	for k := a.list.chunks() - 1; k >= 0; k-- {
		c := a.chunks[k].Load()
		if c == nil || len(*c) == 0 {
			continue
		}
		start := uintptr(unsafe.Pointer(&(*c)[0]))
		end := start + uintptr(len(*c))*a.slotSize
		if addr < start || addr >= end {
			continue
		}
		d := addr - start
		if d%a.slotSize != 0 {
			return 0, false
		}
		return a.list.chunkStart(k) + uint32(d/a.slotSize), true
	}
	return 0, false
}

// Owns reports whether p points at a slot inside one of the allocator's
// chunks, live or free.
func (a *LockFreeAllocator[T]) Owns(p *T) bool {
	if p == nil {
		return false
	}
	_, ok := a.index(p)
	return ok
}

// Chunks returns the number of chunks owned.
func (a *LockFreeAllocator[T]) Chunks() int { return a.list.chunks() }

// Capacity returns the total slot count across all chunks.
func (a *LockFreeAllocator[T]) Capacity() int { return a.list.capacity() }

// Live returns the number of slots currently handed out.
func (a *LockFreeAllocator[T]) Live() int { return int(a.list.live.Load()) }

// Stats returns a snapshot of the allocator. It is safe to call while
// other goroutines allocate.
func (a *LockFreeAllocator[T]) Stats() AllocatorStats {
	return AllocatorStats{
		Chunks:    a.Chunks(),
		Capacity:  a.Capacity(),
		Live:      a.Live(),
		SlotBytes: int(a.slotSize),
	}
}

// Clear drops every chunk. Pointers handed out earlier must not be used
// or deallocated afterwards. Clear must not run concurrently with any
// other method.
func (a *LockFreeAllocator[T]) Clear() {
	n := a.list.chunks()
	for k := 0; k < n; k++ {
		a.chunks[k].Store(nil)
	}
	a.list.reset()
	a.logger.Debug("allocator cleared", zap.Int("chunks", n))
}
