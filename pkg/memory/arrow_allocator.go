package memory

import (
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowAllocator lets Arrow builders draw their buffers from a
// SizeClassCache. Buffers above the cache's MaxSize come from the Go heap.
type ArrowAllocator struct {
	cache *SizeClassCache
}

var _ arrowmem.Allocator = (*ArrowAllocator)(nil)

// NewArrowAllocator wraps cache.
func NewArrowAllocator(cache *SizeClassCache) *ArrowAllocator {
	return &ArrowAllocator{cache: cache}
}

// Allocate returns a zeroed buffer of the given size.
func (a *ArrowAllocator) Allocate(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	b := a.cache.Alloc(size)
	if b == nil {
		panic("memory: arrow buffer allocation failed")
	}
	clear(b)
	return b
}

// Reallocate moves b into a buffer of the new size. Arrow frees buffers
// by their length, so the old buffer is always released at its original
// size.
func (a *ArrowAllocator) Reallocate(size int, b []byte) []byte {
	if size == len(b) {
		return b
	}
	nb := a.Allocate(size)
	copy(nb, b)
	a.Free(b)
	return nb
}

// Free returns b to the cache.
func (a *ArrowAllocator) Free(b []byte) {
	a.cache.Dealloc(b, len(b))
}
