package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/memsched/pkg/lockfree"
	"github.com/ajitpratap0/memsched/pkg/memory"
	"github.com/ajitpratap0/memsched/pkg/workerpool"
)

type slot struct{ a, b int64 }

func TestCollectorAllocator(t *testing.T) {
	alloc := memory.NewLockFreeAllocator[slot](memory.WithInitialSlots(8))
	alloc.Allocate()
	alloc.Allocate()

	c := NewCollector("memsched")
	c.AddAllocator("orders", alloc)

	expected := `
# HELP memsched_allocator_live_slots Slots currently handed out
# TYPE memsched_allocator_live_slots gauge
memsched_allocator_live_slots{allocator="orders"} 2
# HELP memsched_allocator_capacity_slots Slots across all chunks
# TYPE memsched_allocator_capacity_slots gauge
memsched_allocator_capacity_slots{allocator="orders"} 8
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"memsched_allocator_live_slots", "memsched_allocator_capacity_slots"))
}

func TestCollectorQueueAndCache(t *testing.T) {
	q := lockfree.NewMPMCQueue[int]()
	q.Push(1)
	q.Push(2)
	q.Push(3)

	cache := memory.NewSizeClassCache(memory.WithMaxSize(64))
	cache.Alloc(16)
	cache.Alloc(100)

	c := NewCollector("memsched")
	c.AddQueue("tasks", q)
	c.AddAllocator("tasks_nodes", AllocatorFunc(q.NodeStats))
	c.AddCache("bytes", cache)

	expected := `
# HELP memsched_queue_depth Items waiting in the queue
# TYPE memsched_queue_depth gauge
memsched_queue_depth{queue="tasks"} 3
# HELP memsched_cache_large_live Live allocations above the cache threshold
# TYPE memsched_cache_large_live gauge
memsched_cache_large_live{cache="bytes"} 1
# HELP memsched_cache_buckets Size classes in the cache
# TYPE memsched_cache_buckets gauge
memsched_cache_buckets{cache="bytes"} 1
# HELP memsched_allocator_live_slots Slots currently handed out
# TYPE memsched_allocator_live_slots gauge
memsched_allocator_live_slots{allocator="tasks_nodes"} 4
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"memsched_queue_depth", "memsched_cache_large_live", "memsched_cache_buckets",
		"memsched_allocator_live_slots"))
}

func TestCollectorPool(t *testing.T) {
	p := workerpool.New(workerpool.Config{Name: "workers", Workers: 2}, zaptest.NewLogger(t))
	defer p.Close()
	p.AddTask(workerpool.TaskFunc(func() {}), 5)
	p.Wait()

	c := NewCollector("memsched")
	c.AddPool(p)

	expected := `
# HELP memsched_pool_tasks_executed_total Tasks executed
# TYPE memsched_pool_tasks_executed_total counter
memsched_pool_tasks_executed_total{pool="workers"} 5
# HELP memsched_pool_busy Tasks submitted and not finished
# TYPE memsched_pool_busy gauge
memsched_pool_busy{pool="workers"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"memsched_pool_tasks_executed_total", "memsched_pool_busy"))

	c.Remove("workers")
	assert.Zero(t, testutil.CollectAndCount(c))
}

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("memsched")
	require.NoError(t, reg.Register(c))

	c.AddAllocator("a", memory.NewLockFreeAllocator[slot]())
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4, "one family per allocator gauge")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("memsched")
	c.AddQueue("q", lockfree.NewSPSCQueue[int]())
	reg.MustRegister(c)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `memsched_queue_depth{queue="q"} 0`)
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", prometheus.NewRegistry(), zaptest.NewLogger(t)) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestTimerObserveScenario(t *testing.T) {
	timer := NewTimer("unit")
	time.Sleep(time.Millisecond)
	rate := timer.ObserveScenario("unit_test", 1000, false)

	assert.Positive(t, rate)
	assert.Equal(t, "unit", timer.Name())
	assert.Equal(t, float64(1), testutil.ToFloat64(ScenarioRuns.WithLabelValues("unit_test", "passed")))
	assert.Equal(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("unit_test")))
}
