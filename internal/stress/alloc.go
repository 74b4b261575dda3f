package stress

import (
	"context"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/memsched/pkg/errors"
	"github.com/ajitpratap0/memsched/pkg/memory"
	"github.com/ajitpratap0/memsched/pkg/metrics"
)

// batch is how many slots an allocation round holds at once.
const batch = 8

type record struct {
	owner uint64
	seq   uint64
}

func allocationFailed(scenario string) *errors.Error {
	return errors.New(errors.ErrorTypeAllocation, "allocator returned nil").
		WithDetail("scenario", scenario)
}

// runAlloc has Workers goroutines repeatedly take a batch of records from
// one LockFreeAllocator, stamp them, check the stamps and give them back.
// A slot that arrives non-zero, or whose stamp changes while held, was
// handed to two goroutines at once.
func runAlloc(ctx context.Context, r *Runner) (outcome, error) {
	const name = "alloc"
	a := memory.NewLockFreeAllocator[record](r.allocatorOptions()...)
	defer r.track(name, func(c *metrics.Collector) { c.AddAllocator(name, a) })()

	var ops atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Workers; w++ {
		owner := uint64(w + 1)
		g.Go(func() error {
			var held [batch]*record
			for i := 0; i < r.cfg.Cycles; i++ {
				if i%pollEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				for j := range held {
					p := a.Allocate()
					if p == nil {
						return allocationFailed(name)
					}
					if p.owner != 0 {
						return violation(name, "live slot handed out again").
							WithDetail("owner", p.owner).
							WithDetail("taker", owner)
					}
					p.owner, p.seq = owner, uint64(i)
					held[j] = p
				}
				for j, p := range held {
					if p.owner != owner || p.seq != uint64(i) {
						return violation(name, "slot modified while held").
							WithDetail("owner", owner).
							WithDetail("found", p.owner)
					}
					a.Deallocate(p)
					held[j] = nil
				}
				ops.Add(2 * batch)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil && a.Live() != 0 {
		err = violation(name, "slots still live after every goroutine returned its batch").
			WithDetail("live", a.Live())
	}
	return outcome{ops: ops.Load(), details: map[string]interface{}{"allocator": a.Stats()}}, err
}

// runChunks fills a ChunkAllocator one slot at a time, checks that no
// earlier slot was overwritten, then clears it and checks that the arena
// collapsed into a single chunk of the same capacity.
func runChunks(ctx context.Context, r *Runner) (outcome, error) {
	const name = "chunks"
	a := memory.NewChunkAllocator[[16]byte](r.allocatorOptions()...)

	stamp := func(i int) [16]byte {
		var v [16]byte
		for j := range v {
			v[j] = byte(i >> (8 * (j % 4)))
		}
		return v
	}

	slots := make([][][16]byte, 0, r.cfg.Items)
	for i := 0; i < r.cfg.Items; i++ {
		if i%pollEvery == 0 {
			if err := ctx.Err(); err != nil {
				return outcome{ops: int64(i)}, err
			}
		}
		s := a.Allocate(1)
		if s == nil {
			return outcome{ops: int64(i)}, allocationFailed(name)
		}
		s[0] = stamp(i)
		slots = append(slots, s)
	}

	details := map[string]interface{}{"before_clear": a.Stats()}
	out := outcome{ops: int64(len(slots)), details: details}
	for i, s := range slots {
		if s[0] != stamp(i) {
			return out, violation(name, "slot overwritten by a later allocation").WithDetail("slot", i)
		}
	}

	capacity := a.Capacity()
	a.Clear()
	details["after_clear"] = a.Stats()
	if a.Chunks() != 1 || a.Capacity() != capacity {
		return out, violation(name, "clear did not consolidate the arena").
			WithDetail("chunks", a.Chunks()).
			WithDetail("capacity", a.Capacity()).
			WithDetail("expected_capacity", capacity)
	}
	return out, nil
}

var cacheSizes = []int{16, 48, 64, 200, 256, 1024, memory.DefaultMaxCachedSize, memory.DefaultMaxCachedSize + 1}

// runCache has Workers goroutines allocate buffers of mixed sizes from one
// SizeClassCache, fill each with a marker byte, check the markers and free
// the buffers.
func runCache(ctx context.Context, r *Runner) (outcome, error) {
	const name = "cache"
	cache := r.newCache()
	defer r.track(name, func(c *metrics.Collector) { c.AddCache(name, cache) })()

	var ops atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Workers; w++ {
		g.Go(func() error {
			var held [4][]byte
			for i := 0; i < r.cfg.Cycles; i++ {
				if i%pollEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				for j := range held {
					size := cacheSizes[(w+i+j)%len(cacheSizes)]
					b := cache.Alloc(size)
					if b == nil {
						return allocationFailed(name).WithDetail("size", size)
					}
					if len(b) != size {
						return violation(name, "buffer has wrong length").
							WithDetail("size", size).
							WithDetail("len", len(b))
					}
					marker := byte(w*len(held) + j + 1)
					for k := range b {
						b[k] = marker
					}
					held[j] = b
				}
				for j, b := range held {
					marker := byte(w*len(held) + j + 1)
					for k := range b {
						if b[k] != marker {
							return violation(name, "buffer shared with another holder").
								WithDetail("size", len(b)).
								WithDetail("offset", k)
						}
					}
					cache.Dealloc(b, len(b))
					held[j] = nil
				}
				ops.Add(2 * int64(len(held)))
			}
			return nil
		})
	}

	err := g.Wait()
	stats := cache.Stats()
	if err == nil && (stats.LiveSlots != 0 || stats.LargeLive != 0) {
		err = violation(name, "buffers still live after every goroutine freed its own").
			WithDetail("live_slots", stats.LiveSlots).
			WithDetail("large_live", stats.LargeLive)
	}
	return outcome{
		ops: ops.Load(),
		details: map[string]interface{}{
			"cache":   stats,
			"buckets": cache.Buckets(),
		},
	}, err
}

// runArrow builds Int64 arrays concurrently with Arrow builders whose
// buffers come from a SizeClassCache, checks their values and verifies
// that every buffer was returned.
func runArrow(ctx context.Context, r *Runner) (outcome, error) {
	const name = "arrow"
	cache := r.newCache()
	defer r.track(name, func(c *metrics.Collector) { c.AddCache(name, cache) })()
	mem := arrowmem.NewCheckedAllocator(memory.NewArrowAllocator(cache))

	rounds := r.cfg.Cycles / 100
	if rounds < 1 {
		rounds = 1
	}

	var ops atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Workers; w++ {
		g.Go(func() error {
			for i := 0; i < rounds; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				n := 500 + 37*w + i
				b := array.NewInt64Builder(mem)
				for v := 0; v < n; v++ {
					b.Append(int64(w)<<32 | int64(v))
				}
				arr := b.NewInt64Array()
				b.Release()

				for v := 0; v < arr.Len(); v++ {
					if arr.Value(v) != int64(w)<<32|int64(v) {
						arr.Release()
						return violation(name, "array value corrupted").
							WithDetail("worker", w).
							WithDetail("index", v)
					}
				}
				if arr.Len() != n {
					arr.Release()
					return violation(name, "array length mismatch").
						WithDetail("expected", n).
						WithDetail("got", arr.Len())
				}
				arr.Release()
				ops.Add(int64(n))
			}
			return nil
		})
	}

	err := g.Wait()
	if left := mem.CurrentAlloc(); err == nil && left != 0 {
		err = violation(name, "arrow buffers not returned").WithDetail("bytes", left)
	}
	return outcome{
		ops: ops.Load(),
		details: map[string]interface{}{
			"cache":   cache.Stats(),
			"buckets": cache.Buckets(),
		},
	}, err
}
