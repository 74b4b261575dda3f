// Package metrics exposes memsched components to Prometheus.
//
// # Overview
//
// Allocators, caches, pools and queues already keep their own counters for
// Stats(). The Collector in this package reads those snapshots at scrape
// time, so registering a component adds no work to its hot paths.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewCollector("memsched")
//	c.AddAllocator("orders", orderAlloc)
//	c.AddCache("bytes", cache)
//	c.AddPool(pool)
//	reg.MustRegister(c)
//
//	go metrics.Serve(ctx, ":9090", reg, logger)
//
// Stress scenarios additionally record run counts, durations and
// throughput through the package-level ScenarioRuns, ScenarioDuration
// and Throughput vectors.
//
// ChunkAllocator is not safe for concurrent use and is therefore not a
// Collector source.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/memsched/pkg/memory"
	"github.com/ajitpratap0/memsched/pkg/workerpool"
)

// AllocatorSource is implemented by memory.LockFreeAllocator.
type AllocatorSource interface {
	Stats() memory.AllocatorStats
}

// AllocatorFunc adapts a function, such as a queue's NodeStats method, to
// AllocatorSource.
type AllocatorFunc func() memory.AllocatorStats

// Stats calls f.
func (f AllocatorFunc) Stats() memory.AllocatorStats { return f() }

// CacheSource is implemented by memory.SizeClassCache.
type CacheSource interface {
	Stats() memory.CacheStats
}

// PoolSource is implemented by workerpool.Pool.
type PoolSource interface {
	Name() string
	Stats() workerpool.Stats
}

// QueueSource is implemented by the lockfree queues.
type QueueSource interface {
	Len() int
}

// Collector is a prometheus.Collector over registered memsched components.
type Collector struct {
	mu         sync.RWMutex
	allocators map[string]AllocatorSource
	caches     map[string]CacheSource
	pools      map[string]PoolSource
	queues     map[string]QueueSource

	allocChunks   *prometheus.Desc
	allocCapacity *prometheus.Desc
	allocLive     *prometheus.Desc
	allocSlot     *prometheus.Desc

	cacheBuckets    *prometheus.Desc
	cacheLive       *prometheus.Desc
	cacheCapacity   *prometheus.Desc
	cacheArena      *prometheus.Desc
	cacheLargeLive  *prometheus.Desc
	cacheLargeBytes *prometheus.Desc

	poolWorkers   *prometheus.Desc
	poolBusy      *prometheus.Desc
	poolQueued    *prometheus.Desc
	poolSubmitted *prometheus.Desc
	poolExecuted  *prometheus.Desc
	poolPanics    *prometheus.Desc

	queueDepth *prometheus.Desc
}

// NewCollector creates an empty collector whose metric names start with
// namespace.
func NewCollector(namespace string) *Collector {
	desc := func(subsystem, name, help, label string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, []string{label}, nil)
	}
	return &Collector{
		allocators: make(map[string]AllocatorSource),
		caches:     make(map[string]CacheSource),
		pools:      make(map[string]PoolSource),
		queues:     make(map[string]QueueSource),

		allocChunks:   desc("allocator", "chunks", "Chunks owned by the allocator", "allocator"),
		allocCapacity: desc("allocator", "capacity_slots", "Slots across all chunks", "allocator"),
		allocLive:     desc("allocator", "live_slots", "Slots currently handed out", "allocator"),
		allocSlot:     desc("allocator", "slot_bytes", "Size of one slot in bytes", "allocator"),

		cacheBuckets:    desc("cache", "buckets", "Size classes in the cache", "cache"),
		cacheLive:       desc("cache", "live_slots", "Cached slots currently handed out", "cache"),
		cacheCapacity:   desc("cache", "capacity_bytes", "Bytes held by bucket chunks", "cache"),
		cacheArena:      desc("cache", "arena_bytes", "Bytes reserved by the backing arena", "cache"),
		cacheLargeLive:  desc("cache", "large_live", "Live allocations above the cache threshold", "cache"),
		cacheLargeBytes: desc("cache", "large_bytes", "Bytes in live allocations above the cache threshold", "cache"),

		poolWorkers:   desc("pool", "workers", "Worker goroutines", "pool"),
		poolBusy:      desc("pool", "busy", "Tasks submitted and not finished", "pool"),
		poolQueued:    desc("pool", "queued", "Tasks waiting in the queue", "pool"),
		poolSubmitted: desc("pool", "tasks_submitted_total", "Tasks submitted", "pool"),
		poolExecuted:  desc("pool", "tasks_executed_total", "Tasks executed", "pool"),
		poolPanics:    desc("pool", "task_panics_total", "Tasks that panicked", "pool"),

		queueDepth: desc("queue", "depth", "Items waiting in the queue", "queue"),
	}
}

// AddAllocator registers an allocator under name.
func (c *Collector) AddAllocator(name string, src AllocatorSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allocators[name] = src
}

// AddCache registers a size-class cache under name.
func (c *Collector) AddCache(name string, src CacheSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caches[name] = src
}

// AddPool registers a worker pool under its own name.
func (c *Collector) AddPool(src PoolSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools[src.Name()] = src
}

// AddQueue registers a queue under name.
func (c *Collector) AddQueue(name string, src QueueSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues[name] = src
}

// Remove unregisters every source called name.
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.allocators, name)
	delete(c.caches, name)
	delete(c.pools, name)
	delete(c.queues, name)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.allocChunks, c.allocCapacity, c.allocLive, c.allocSlot,
		c.cacheBuckets, c.cacheLive, c.cacheCapacity, c.cacheArena, c.cacheLargeLive, c.cacheLargeBytes,
		c.poolWorkers, c.poolBusy, c.poolQueued, c.poolSubmitted, c.poolExecuted, c.poolPanics,
		c.queueDepth,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	gauge := func(d *prometheus.Desc, v float64, label string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, label)
	}
	counter := func(d *prometheus.Desc, v float64, label string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, label)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, src := range c.allocators {
		s := src.Stats()
		gauge(c.allocChunks, float64(s.Chunks), name)
		gauge(c.allocCapacity, float64(s.Capacity), name)
		gauge(c.allocLive, float64(s.Live), name)
		gauge(c.allocSlot, float64(s.SlotBytes), name)
	}
	for name, src := range c.caches {
		s := src.Stats()
		gauge(c.cacheBuckets, float64(s.Buckets), name)
		gauge(c.cacheLive, float64(s.LiveSlots), name)
		gauge(c.cacheCapacity, float64(s.CapacityBytes), name)
		gauge(c.cacheArena, float64(s.ArenaBytes), name)
		gauge(c.cacheLargeLive, float64(s.LargeLive), name)
		gauge(c.cacheLargeBytes, float64(s.LargeBytes), name)
	}
	for name, src := range c.pools {
		s := src.Stats()
		gauge(c.poolWorkers, float64(s.Workers), name)
		gauge(c.poolBusy, float64(s.Busy), name)
		gauge(c.poolQueued, float64(s.Queued), name)
		counter(c.poolSubmitted, float64(s.Submitted), name)
		counter(c.poolExecuted, float64(s.Executed), name)
		counter(c.poolPanics, float64(s.Panics), name)
	}
	for name, src := range c.queues {
		gauge(c.queueDepth, float64(src.Len()), name)
	}
}

var (
	// ScenarioRuns counts stress scenario runs.
	// Labels: scenario, status (passed/failed)
	ScenarioRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memsched_stress_runs_total",
			Help: "Stress scenario runs",
		},
		[]string{"scenario", "status"},
	)

	// ScenarioDuration tracks how long stress scenarios take, in seconds.
	ScenarioDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "memsched_stress_duration_seconds",
			Help: "Stress scenario wall time in seconds",
			Buckets: []float64{
				0.001, // 1ms - trivial runs
				0.01,  // 10ms
				0.1,   // 100ms - default sizes
				1,     // 1s
				10,    // 10s - large runs
				60,
			},
		},
		[]string{"scenario"},
	)

	// Throughput tracks the operations per second of the last run of each
	// scenario.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memsched_stress_ops_per_second",
			Help: "Operations per second of the last stress run",
		},
		[]string{"scenario"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveScenario stops the timer and records the run of scenario with
// ops operations in ScenarioRuns, ScenarioDuration and Throughput. It
// returns the operations per second.
func (t *Timer) ObserveScenario(scenario string, ops int64, failed bool) float64 {
	elapsed := t.Stop()
	status := "passed"
	if failed {
		status = "failed"
	}
	ScenarioRuns.WithLabelValues(scenario, status).Inc()
	ScenarioDuration.WithLabelValues(scenario).Observe(elapsed.Seconds())

	var rate float64
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(ops) / s
	}
	Throughput.WithLabelValues(scenario).Set(rate)
	return rate
}
