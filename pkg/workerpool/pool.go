package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/memsched/pkg/errors"
	"github.com/ajitpratap0/memsched/pkg/lockfree"
	"github.com/ajitpratap0/memsched/pkg/memory"
)

// State is the lifecycle stage of a Pool.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config configures a Pool.
type Config struct {
	Name       string
	Workers    int  // 0 = NumCPU - 1, at least 1
	PinThreads bool // lock each worker to its own OS thread
	QueueSlots int  // initial node chunk of the task queue; 0 = allocator default
}

// Stats is a snapshot of a Pool.
type Stats struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Workers   int    `json:"workers"`
	Busy      int64  `json:"busy"`
	Queued    int    `json:"queued"`
	Submitted uint64 `json:"submitted"`
	Executed  uint64 `json:"executed"`
	Panics    uint64 `json:"panics"`
}

// Pool is a fixed set of workers pulling tasks from an MPMC queue.
type Pool struct {
	name   string
	logger *zap.Logger
	pin    bool

	queue *lockfree.MPMCQueue[Task]
	sem   *Semaphore

	running  atomic.Int64 // live workers; negated during shutdown
	inflight atomic.Int64 // submitted but not finished
	state    atomic.Int32

	mu      sync.Mutex
	threads []*Thread

	submitted atomic.Uint64
	executed  atomic.Uint64
	panics    atomic.Uint64

	closeOnce sync.Once
}

// DefaultWorkers returns one less than the number of CPUs, at least 1.
func DefaultWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

// New starts a pool. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	var qopts []memory.Option
	if cfg.QueueSlots > 0 {
		qopts = append(qopts, memory.WithInitialSlots(cfg.QueueSlots))
	}

	p := &Pool{
		name:   cfg.Name,
		logger: logger.With(zap.String("pool", cfg.Name)),
		pin:    cfg.PinThreads,
		queue:  lockfree.NewMPMCQueue[Task](qopts...),
		sem:    NewSemaphore(0),
	}
	p.state.Store(int32(StateInitializing))
	p.AddThreads(cfg.Workers)
	p.state.Store(int32(StateRunning))

	p.logger.Info("worker pool started",
		zap.Int("workers", cfg.Workers),
		zap.Bool("pinned", cfg.PinThreads))
	return p
}

// AddThreads starts n more workers. It does nothing once Close has begun.
func (p *Pool) AddThreads(n int) {
	if n <= 0 || p.State() >= StateShuttingDown {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		p.running.Add(1)
		if p.pin {
			p.threads = append(p.threads, GoLocked(p.work))
		} else {
			p.threads = append(p.threads, Go(p.work))
		}
	}
	if p.State() == StateRunning {
		p.logger.Debug("workers added", zap.Int("added", n), zap.Int("workers", len(p.threads)))
	}
}

func (p *Pool) work() {
	for {
		p.sem.Wait()
		if p.running.Load() < 0 {
			p.running.Add(1)
			return
		}
		p.drain()
	}
}

func (p *Pool) drain() {
	for {
		t, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.execute(t)
	}
}

func (p *Pool) execute(t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("task panicked",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
		p.executed.Add(1)
		p.inflight.Add(-1)
	}()
	t.Run()
}

// AddTask queues instances copies of t (at least one) and wakes that many
// workers. Adding tasks after Close has begun is not supported.
func (p *Pool) AddTask(t Task, instances int) {
	if t == nil {
		return
	}
	if instances < 1 {
		instances = 1
	}
	p.inflight.Add(int64(instances))
	p.submitted.Add(uint64(instances))
	for i := 0; i < instances; i++ {
		p.queue.Push(t)
	}
	p.sem.Notify(instances)
}

// AddFunc queues fn(arg) instances times.
func (p *Pool) AddFunc(fn func(any), arg any, instances int) {
	p.AddTask(FuncTask(fn, arg), instances)
}

// Submit queues a single closure.
func (p *Pool) Submit(fn func()) {
	p.AddTask(TaskFunc(fn), 1)
}

// TrySubmit is Submit with a state check: it returns an ErrorTypeShutdown
// error instead of queueing once Close has begun. A Close racing the check
// still runs the task during its final drain.
func (p *Pool) TrySubmit(fn func()) error {
	if st := p.State(); st >= StateShuttingDown {
		return errors.New(errors.ErrorTypeShutdown, "pool is closed").
			WithDetail("pool", p.name).
			WithDetail("state", st.String())
	}
	p.Submit(fn)
	return nil
}

// Wait runs queued tasks on the calling goroutine and returns once no task
// is in flight. Tasks added after an earlier Wait are waited for as well.
func (p *Pool) Wait() {
	for {
		p.drain()
		if p.inflight.Load() == 0 {
			return
		}
		runtime.Gosched()
	}
}

// Busy returns the number of tasks submitted but not yet finished.
func (p *Pool) Busy() int64 {
	return p.inflight.Load()
}

// Workers returns the number of worker goroutines started and not yet
// joined by Close.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// Name returns the configured pool name.
func (p *Pool) Name() string { return p.name }

// State returns the current lifecycle stage.
func (p *Pool) State() State {
	return State(p.state.Load())
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		State:     p.State().String(),
		Workers:   p.Workers(),
		Busy:      p.Busy(),
		Queued:    p.queue.Len(),
		Submitted: p.submitted.Load(),
		Executed:  p.executed.Load(),
		Panics:    p.panics.Load(),
	}
}

// Close stops every worker and waits for them to exit. Tasks still queued
// when the workers are gone run on the calling goroutine. Close is safe to
// call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.state.Store(int32(StateShuttingDown))
		p.logger.Info("worker pool shutting down", zap.Int64("busy", p.Busy()))

		p.mu.Lock()
		threads := p.threads
		p.threads = nil
		p.mu.Unlock()

		var n int64
		for {
			n = p.running.Load()
			if p.running.CompareAndSwap(n, -n) {
				break
			}
		}
		p.sem.Notify(int(n))
		for p.running.Load() != 0 {
			runtime.Gosched()
		}
		for _, t := range threads {
			t.Join()
		}

		p.drain()
		p.state.Store(int32(StateTerminated))
		p.logger.Info("worker pool terminated",
			zap.Uint64("executed", p.executed.Load()),
			zap.Uint64("panics", p.panics.Load()))
	})
}
