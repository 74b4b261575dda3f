// Package stress runs end-to-end concurrency scenarios against the
// allocators, queues and worker pool, checking the properties each one
// promises: FIFO order, no lost or duplicated items, no aliasing live
// slots, and Wait returning only when the pool is idle.
//
// Every scenario runs inside a tracing span, records its duration and
// throughput in the metrics package and returns a Result. A scenario that
// observes a broken contract returns an error of type
// errors.ErrorTypeProtocol whose details describe the first violation.
package stress

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/memsched/pkg/config"
	"github.com/ajitpratap0/memsched/pkg/errors"
	"github.com/ajitpratap0/memsched/pkg/logger"
	"github.com/ajitpratap0/memsched/pkg/memory"
	"github.com/ajitpratap0/memsched/pkg/metrics"
	"github.com/ajitpratap0/memsched/pkg/observability"
)

// All names the pseudo-scenario that runs every registered scenario.
const All = "all"

// Config sizes the scenarios.
type Config struct {
	Producers int `json:"producers"`
	Consumers int `json:"consumers"`
	Workers   int `json:"workers"` // pool workers and allocator goroutines
	Items     int `json:"items"`   // items per producer
	Tasks     int `json:"tasks"`   // tasks per pool round
	Cycles    int `json:"cycles"`  // allocate/deallocate cycles per goroutine

	InitialSlots int  `json:"initial_slots"`
	Backoff      bool `json:"backoff"`
	PinThreads   bool `json:"pin_threads"`
}

// DefaultConfig returns the sizes used by `memsched stress` without flags.
func DefaultConfig() Config {
	return Config{
		Producers:    4,
		Consumers:    4,
		Workers:      4,
		Items:        100000,
		Tasks:        1000,
		Cycles:       10000,
		InitialSlots: memory.DefaultInitialSlots,
	}
}

// FromConfig builds a Config from the stress, memory and pool sections.
func FromConfig(cfg *config.Config) Config {
	c := Config{
		Producers:    cfg.Stress.Producers,
		Consumers:    cfg.Stress.Consumers,
		Workers:      cfg.Pool.Workers,
		Items:        cfg.Stress.Items,
		Tasks:        cfg.Stress.Tasks,
		Cycles:       cfg.Stress.Cycles,
		InitialSlots: cfg.Memory.InitialSlots,
		Backoff:      cfg.Memory.Backoff,
		PinThreads:   cfg.Pool.PinThreads,
	}
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Producers <= 0 {
		c.Producers = d.Producers
	}
	if c.Consumers <= 0 {
		c.Consumers = d.Consumers
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.Items <= 0 {
		c.Items = d.Items
	}
	if c.Tasks <= 0 {
		c.Tasks = d.Tasks
	}
	if c.Cycles <= 0 {
		c.Cycles = d.Cycles
	}
	if c.InitialSlots <= 0 {
		c.InitialSlots = d.InitialSlots
	}
	return c
}


// Result describes one scenario run.
type Result struct {
	Scenario  string                 `json:"scenario"`
	Ops       int64                  `json:"ops"`
	Duration  time.Duration          `json:"duration"`
	OpsPerSec float64                `json:"ops_per_sec"`
	Passed    bool                   `json:"passed"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// outcome is what a scenario body reports back to Runner.run.
type outcome struct {
	ops     int64
	details map[string]interface{}
}

type scenarioFunc func(ctx context.Context, r *Runner) (outcome, error)

var scenarios = map[string]scenarioFunc{
	"spsc":   runSPSC,
	"mpmc":   runMPMC,
	"pool":   runPool,
	"alloc":  runAlloc,
	"chunks": runChunks,
	"cache":  runCache,
	"arrow":  runArrow,
}

// Names returns the registered scenario names in sorted order.
func Names() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runner executes scenarios with a fixed Config.
type Runner struct {
	cfg       Config
	logger    *zap.Logger
	collector *metrics.Collector
	allocOpts []memory.Option
	cacheOpts []memory.CacheOption
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger. The default is logger.Get().
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCollector registers every component a scenario creates with c for
// the duration of that scenario.
func WithCollector(c *metrics.Collector) Option {
	return func(r *Runner) {
		r.collector = c
	}
}

// WithAllocatorOptions adds options applied to every allocator and queue
// a scenario creates, after the ones derived from Config.
func WithAllocatorOptions(opts ...memory.Option) Option {
	return func(r *Runner) {
		r.allocOpts = append(r.allocOpts, opts...)
	}
}

// WithCacheOptions adds options applied to every SizeClassCache a scenario
// creates. They are unused while a default cache is installed.
func WithCacheOptions(opts ...memory.CacheOption) Option {
	return func(r *Runner) {
		r.cacheOpts = append(r.cacheOpts, opts...)
	}
}

// New creates a Runner. Zero fields of cfg take DefaultConfig values.
func New(cfg Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg.withDefaults()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	r.logger = r.logger.With(zap.String("component", "stress"))
	return r
}

// Config returns the effective configuration.
func (r *Runner) Config() Config { return r.cfg }

// Run executes the named scenario. The returned error is non-nil when the
// scenario is unknown, was cancelled or saw a contract violation; the
// Result is filled in either way for known scenarios.
func (r *Runner) Run(ctx context.Context, name string) (Result, error) {
	fn, ok := scenarios[name]
	if !ok {
		return Result{Scenario: name}, errors.New(errors.ErrorTypeValidation, "unknown scenario").
			WithDetail("scenario", name).
			WithDetail("known", Names())
	}
	return r.run(ctx, name, fn)
}

// RunAll executes every scenario in name order. It keeps going after a
// failure and returns the first error.
func (r *Runner) RunAll(ctx context.Context) ([]Result, error) {
	var first error
	results := make([]Result, 0, len(scenarios))
	for _, name := range Names() {
		if err := ctx.Err(); err != nil {
			if first == nil {
				first = err
			}
			break
		}
		res, err := r.Run(ctx, name)
		results = append(results, res)
		if err != nil && first == nil {
			first = err
		}
	}
	return results, first
}

// RunNamed runs name, or every scenario when name is All.
func (r *Runner) RunNamed(ctx context.Context, name string) ([]Result, error) {
	if name == All {
		return r.RunAll(ctx)
	}
	res, err := r.Run(ctx, name)
	return []Result{res}, err
}

func (r *Runner) run(ctx context.Context, name string, fn scenarioFunc) (Result, error) {
	ctx = logger.ContextWithScenario(logger.IntoContext(ctx, r.logger), name)
	ctx, span := observability.StartSpan(ctx, "stress."+name,
		attribute.String("scenario", name),
		attribute.Int("producers", r.cfg.Producers),
		attribute.Int("consumers", r.cfg.Consumers),
		attribute.Int("workers", r.cfg.Workers),
		attribute.Int("items", r.cfg.Items),
	)
	log := logger.FromContext(ctx)
	log.Info("scenario started")

	timer := metrics.NewTimer(name)
	out, err := fn(ctx, r)
	rate := timer.ObserveScenario(name, out.ops, err != nil)

	res := Result{
		Scenario:  name,
		Ops:       out.ops,
		Duration:  timer.Stop(),
		OpsPerSec: rate,
		Passed:    err == nil,
		Details:   out.details,
	}
	span.SetAttributes(attribute.Int64("ops", out.ops), attribute.Float64("ops_per_sec", rate))
	observability.EndSpan(span, err)

	if err != nil {
		res.Error = err.Error()
		log.Error("scenario failed", zap.Error(err), zap.Any("details", errors.Details(err)))
		return res, err
	}
	log.Info("scenario passed",
		zap.Int64("ops", out.ops),
		zap.Duration("duration", res.Duration),
		zap.Float64("ops_per_sec", rate))
	return res, nil
}

func (r *Runner) allocatorOptions() []memory.Option {
	opts := []memory.Option{
		memory.WithInitialSlots(r.cfg.InitialSlots),
		memory.WithBackoff(r.cfg.Backoff),
		memory.WithLogger(r.logger),
	}
	return append(opts, r.allocOpts...)
}

// newCache returns the process default cache when one is installed, so
// repeated runs share one arena, and a fresh cache otherwise.
func (r *Runner) newCache() *memory.SizeClassCache {
	if c, ok := memory.Default(); ok {
		return c
	}
	opts := []memory.CacheOption{
		memory.WithCacheBackoff(r.cfg.Backoff),
		memory.WithCacheLogger(r.logger),
	}
	return memory.NewSizeClassCache(append(opts, r.cacheOpts...)...)
}

// violation builds the error returned when a scenario sees a broken
// contract.
func violation(scenario, msg string) *errors.Error {
	return errors.New(errors.ErrorTypeProtocol, msg).WithDetail("scenario", scenario)
}

// track registers a component with the collector, if any, and returns a
// func that removes it again.
func (r *Runner) track(name string, add func(c *metrics.Collector)) func() {
	if r.collector == nil {
		return func() {}
	}
	add(r.collector)
	return func() { r.collector.Remove(name) }
}
