package lockfree

import (
	"runtime"
	"sync/atomic"
)

// spinLock is a test-and-set lock for critical sections a few instructions
// long. Waiters yield the processor between attempts so a lock holder that
// was descheduled can finish.
type spinLock struct {
	held atomic.Bool
	_    [7]uint64 //nolint:unused // 56 bytes padding to keep locks on separate cache lines
}

func (l *spinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	l.held.Store(false)
}
