package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/memsched/pkg/errors"
	"github.com/ajitpratap0/memsched/pkg/testutil"
)

func TestPoolCountsEveryTask(t *testing.T) {
	p := New(Config{Name: "counter", Workers: 4}, zaptest.NewLogger(t))
	defer p.Close()

	var counter atomic.Int64
	for i := 0; i < 1000; i++ {
		p.Submit(func() { counter.Add(1) })
	}
	p.Wait()

	assert.Equal(t, int64(1000), counter.Load())
	assert.Zero(t, p.Busy())
}

func TestPoolInstances(t *testing.T) {
	p := New(Config{Workers: 2}, nil)
	defer p.Close()

	var counter atomic.Int64
	p.AddFunc(func(arg any) { counter.Add(arg.(int64)) }, int64(3), 10)
	p.AddTask(TaskFunc(func() { counter.Add(1) }), 0)
	p.Wait()

	assert.Equal(t, int64(31), counter.Load())
	assert.Equal(t, uint64(11), p.Stats().Submitted)
}

func TestPoolWaitAgain(t *testing.T) {
	p := New(Config{Workers: 3}, nil)
	defer p.Close()

	var counter atomic.Int64
	task := TaskFunc(func() { counter.Add(1) })

	p.AddTask(task, 50)
	p.Wait()
	require.Equal(t, int64(50), counter.Load())

	p.AddTask(task, 50)
	p.Wait()
	assert.Equal(t, int64(100), counter.Load())
	assert.Zero(t, p.Busy())
}

func TestPoolWaitRunsTasksOnCaller(t *testing.T) {
	p := New(Config{Workers: 1}, nil)
	defer p.Close()

	block := make(chan struct{})
	p.Submit(func() { <-block })
	for p.queue.Len() > 0 {
		time.Sleep(time.Millisecond)
	}

	// The only worker is stuck, so Wait must run these itself.
	var counter atomic.Int64
	p.AddTask(TaskFunc(func() { counter.Add(1) }), 20)

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	testutil.AssertEventually(t, func() bool { return counter.Load() == 20 }, 5*time.Second, "Wait did not run the queued tasks")

	select {
	case <-done:
		t.Fatal("Wait returned while a task was still running")
	default:
	}
	close(block)
	<-done
	assert.Zero(t, p.Busy())
}

func TestPoolRecoversPanics(t *testing.T) {
	p := New(Config{Workers: 2}, zaptest.NewLogger(t))
	defer p.Close()

	var counter atomic.Int64
	p.Submit(func() { panic("boom") })
	p.AddTask(TaskFunc(func() { counter.Add(1) }), 10)
	p.Wait()

	s := p.Stats()
	assert.Equal(t, uint64(1), s.Panics)
	assert.Equal(t, uint64(11), s.Executed)
	assert.Equal(t, int64(10), counter.Load())
}

func TestPoolAddThreads(t *testing.T) {
	p := New(Config{Workers: 1}, nil)
	defer p.Close()

	p.AddThreads(3)
	assert.Equal(t, 4, p.Workers())
	assert.Equal(t, int64(4), p.running.Load())

	var counter atomic.Int64
	p.AddTask(TaskFunc(func() { counter.Add(1) }), 100)
	p.Wait()
	assert.Equal(t, int64(100), counter.Load())
}

func TestPoolDefaultWorkers(t *testing.T) {
	p := New(Config{}, nil)
	defer p.Close()
	assert.Equal(t, DefaultWorkers(), p.Workers())
	assert.GreaterOrEqual(t, p.Workers(), 1)
}

func TestPoolClose(t *testing.T) {
	p := New(Config{Name: "close", Workers: 4, PinThreads: true}, zaptest.NewLogger(t))
	assert.Equal(t, StateRunning, p.State())

	var counter atomic.Int64
	p.AddTask(TaskFunc(func() { counter.Add(1) }), 100)
	p.Close()

	assert.Equal(t, StateTerminated, p.State())
	assert.Zero(t, p.running.Load())
	assert.Zero(t, p.Workers())
	assert.Equal(t, int64(100), counter.Load(), "queued tasks still run")

	assert.NotPanics(t, p.Close)
	p.AddThreads(2)
	assert.Zero(t, p.Workers())
}

func TestPoolTrySubmit(t *testing.T) {
	p := New(Config{Name: "try", Workers: 2}, nil)

	var counter atomic.Int64
	require.NoError(t, p.TrySubmit(func() { counter.Add(1) }))
	p.Wait()
	assert.Equal(t, int64(1), counter.Load())

	p.Close()
	err := p.TrySubmit(func() { counter.Add(1) })
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeShutdown))
	assert.Equal(t, "try", errors.Details(err)["pool"])
	assert.Equal(t, int64(1), counter.Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "shutting_down", StateShuttingDown.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}
