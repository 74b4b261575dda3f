package stress

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/memsched/pkg/lockfree"
	"github.com/ajitpratap0/memsched/pkg/metrics"
)

// pollEvery is how many items a loop handles between context checks.
const pollEvery = 1024

// runSPSC pushes 1..Items from one goroutine and checks that a second
// goroutine pops exactly that sequence.
func runSPSC(ctx context.Context, r *Runner) (outcome, error) {
	const name = "spsc"
	n := r.cfg.Items
	q := lockfree.NewSPSCQueue[int](r.allocatorOptions()...)
	defer r.track(name, func(c *metrics.Collector) {
		c.AddQueue(name, q)
		c.AddAllocator(name, metrics.AllocatorFunc(q.NodeStats))
	})()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 1; i <= n; i++ {
			if i%pollEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			q.Push(i)
		}
		return nil
	})
	g.Go(func() error {
		want := 1
		for spins := 0; want <= n; spins++ {
			v, ok := q.Pop()
			if !ok {
				if spins%pollEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				runtime.Gosched()
				continue
			}
			if v != want {
				return violation(name, "items popped out of order").
					WithDetail("expected", want).
					WithDetail("got", v)
			}
			want++
		}
		return nil
	})

	err := g.Wait()
	if err == nil && !q.Empty() {
		err = violation(name, "queue not empty after draining").WithDetail("len", q.Len())
	}
	return outcome{
		ops: int64(n) * 2,
		details: map[string]interface{}{
			"items": n,
			"nodes": q.NodeStats(),
		},
	}, err
}

// tag packs a producer id and a per-producer sequence number.
func tag(producer, seq int) uint64 {
	return uint64(producer)<<32 | uint64(seq)
}

func untag(v uint64) (producer, seq int) {
	return int(v >> 32), int(uint32(v))
}

// runMPMC has Producers goroutines push Items tagged values each while
// Consumers goroutines pop until every value has been seen. It fails on a
// duplicate, an unknown value, a value from one producer arriving before
// an earlier one at the same consumer, or a missing value.
func runMPMC(ctx context.Context, r *Runner) (outcome, error) {
	const name = "mpmc"
	producers, consumers, perProducer := r.cfg.Producers, r.cfg.Consumers, r.cfg.Items
	total := int64(producers) * int64(perProducer)

	q := lockfree.NewMPMCQueue[uint64](r.allocatorOptions()...)
	defer r.track(name, func(c *metrics.Collector) {
		c.AddQueue(name, q)
		c.AddAllocator(name, metrics.AllocatorFunc(q.NodeStats))
	})()

	seen := make([]atomic.Bool, total)
	var consumed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			for s := 0; s < perProducer; s++ {
				if s%pollEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				q.Push(tag(p, s))
			}
			return nil
		})
	}
	for c := 0; c < consumers; c++ {
		g.Go(func() error {
			last := make([]int, producers)
			for i := range last {
				last[i] = -1
			}
			for spins := 0; consumed.Load() < total; spins++ {
				v, ok := q.Pop()
				if !ok {
					if spins%pollEvery == 0 {
						if err := ctx.Err(); err != nil {
							return err
						}
					}
					runtime.Gosched()
					continue
				}
				p, s := untag(v)
				if p >= producers || s >= perProducer {
					return violation(name, "popped a value nobody pushed").
						WithDetail("producer", p).
						WithDetail("seq", s)
				}
				if s <= last[p] {
					return violation(name, "producer order not preserved").
						WithDetail("producer", p).
						WithDetail("previous", last[p]).
						WithDetail("seq", s)
				}
				last[p] = s
				if !seen[p*perProducer+s].CompareAndSwap(false, true) {
					return violation(name, "value popped twice").
						WithDetail("producer", p).
						WithDetail("seq", s)
				}
				consumed.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		for i := range seen {
			if !seen[i].Load() {
				p, s := i/perProducer, i%perProducer
				err = violation(name, "value lost").
					WithDetail("producer", p).
					WithDetail("seq", s)
				break
			}
		}
	}
	return outcome{
		ops: consumed.Load() * 2,
		details: map[string]interface{}{
			"producers": producers,
			"consumers": consumers,
			"items":     total,
			"nodes":     q.NodeStats(),
		},
	}, err
}
