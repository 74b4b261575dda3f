package memory

import (
	"fmt"
	"sync"
	"testing"
)

func BenchmarkLockFreeAllocator(b *testing.B) {
	a := NewLockFreeAllocator[record](WithInitialSlots(1024))
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			p := a.Allocate()
			p.seq++
			a.Deallocate(p)
		}
	})
}

func BenchmarkSyncPool(b *testing.B) {
	p := sync.Pool{New: func() any { return new(record) }}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			r := p.Get().(*record)
			r.seq++
			p.Put(r)
		}
	})
}

func BenchmarkSizeClassCache(b *testing.B) {
	for _, size := range []int{16, 256, 4096} {
		b.Run(fmt.Sprintf("%dB", size), func(b *testing.B) {
			c := NewSizeClassCache()
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					buf := c.Alloc(size)
					buf[0] = 1
					c.Dealloc(buf, size)
				}
			})
		})
	}
}

func BenchmarkChunkAllocator(b *testing.B) {
	a := NewChunkAllocator[record](WithInitialSlots(4096))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s := a.Allocate(1)
		s[0].seq = int64(i)
		if a.Allocated() >= 1<<20 {
			a.Clear()
		}
	}
}
