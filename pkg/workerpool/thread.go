package workerpool

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Thread is a handle to a goroutine that can be joined.
type Thread struct {
	done     chan struct{}
	detached atomic.Bool
}

// Go runs fn on a new goroutine.
func Go(fn func()) *Thread {
	return spawn(fn, false)
}

// GoLocked runs fn on a new goroutine wired to its own OS thread for its
// whole life. The thread exits with the goroutine.
func GoLocked(fn func()) *Thread {
	return spawn(fn, true)
}

func spawn(fn func(), pin bool) *Thread {
	t := &Thread{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		if pin {
			runtime.LockOSThread()
		}
		fn()
	}()
	return t
}

// Join blocks until the goroutine returns. It returns at once for a
// detached thread.
func (t *Thread) Join() {
	if t.detached.Load() {
		return
	}
	<-t.done
}

// JoinTimeout waits at most d for the goroutine to return and reports
// whether it did.
func (t *Thread) JoinTimeout(d time.Duration) bool {
	if t.detached.Load() {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

// Detach gives up the right to join. The goroutine keeps running.
func (t *Thread) Detach() {
	t.detached.Store(true)
}

// Done is closed when the goroutine returns.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}
