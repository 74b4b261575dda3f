package stress

import (
	"context"
	"sync/atomic"

	"github.com/ajitpratap0/memsched/pkg/errors"
	"github.com/ajitpratap0/memsched/pkg/metrics"
	"github.com/ajitpratap0/memsched/pkg/workerpool"
)

// runPool submits Tasks increments to a Workers-sized pool, waits, then
// submits a second round and waits again. Both Waits must return with the
// pool idle and every task counted. A closed pool must refuse TrySubmit.
func runPool(ctx context.Context, r *Runner) (outcome, error) {
	const name = "pool"
	p := workerpool.New(workerpool.Config{
		Name:       "stress",
		Workers:    r.cfg.Workers,
		PinThreads: r.cfg.PinThreads,
		QueueSlots: r.cfg.InitialSlots,
	}, r.logger)
	defer p.Close()
	defer r.track(p.Name(), func(c *metrics.Collector) { c.AddPool(p) })()

	var counter atomic.Int64
	inc := workerpool.TaskFunc(func() { counter.Add(1) })

	check := func(round int) error {
		p.Wait()
		if busy := p.Busy(); busy != 0 {
			return violation(name, "wait returned with tasks in flight").
				WithDetail("round", round).
				WithDetail("busy", busy)
		}
		if got, want := counter.Load(), int64(round*r.cfg.Tasks); got != want {
			return violation(name, "task count mismatch").
				WithDetail("round", round).
				WithDetail("expected", want).
				WithDetail("got", got)
		}
		return nil
	}

	p.AddTask(inc, r.cfg.Tasks)
	if err := check(1); err != nil {
		return outcome{ops: counter.Load(), details: poolDetails(p)}, err
	}
	if err := ctx.Err(); err != nil {
		return outcome{ops: counter.Load(), details: poolDetails(p)}, err
	}

	p.AddFunc(func(any) { counter.Add(1) }, nil, r.cfg.Tasks)
	if err := check(2); err != nil {
		return outcome{ops: counter.Load(), details: poolDetails(p)}, err
	}

	p.Close()
	if err := p.TrySubmit(func() { counter.Add(1) }); !errors.IsType(err, errors.ErrorTypeShutdown) {
		return outcome{ops: counter.Load(), details: poolDetails(p)},
			violation(name, "closed pool accepted a task")
	}
	return outcome{ops: counter.Load(), details: poolDetails(p)}, nil
}

func poolDetails(p *workerpool.Pool) map[string]interface{} {
	return map[string]interface{}{"pool": p.Stats()}
}
