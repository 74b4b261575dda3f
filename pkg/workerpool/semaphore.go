package workerpool

import (
	"context"
	"math"

	"golang.org/x/sync/semaphore"
)

const semaphoreSize = math.MaxInt64

// Semaphore is a counting semaphore that may start with zero permits.
// It wraps a weighted semaphore whose spare capacity is held back at
// construction, so releasing held weight is what makes permits available.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore returns a semaphore with the given number of permits.
func NewSemaphore(permits int) *Semaphore {
	w := semaphore.NewWeighted(semaphoreSize)
	w.TryAcquire(semaphoreSize - int64(permits))
	return &Semaphore{w: w}
}

// Notify adds n permits, waking up to n waiters.
func (s *Semaphore) Notify(n int) {
	if n > 0 {
		s.w.Release(int64(n))
	}
}

// Wait blocks until a permit is available and takes it.
func (s *Semaphore) Wait() {
	_ = s.w.Acquire(context.Background(), 1)
}

// WaitContext is Wait with cancellation.
func (s *Semaphore) WaitContext(ctx context.Context) error {
	return s.w.Acquire(ctx, 1)
}

// TryWait takes a permit if one is available without blocking.
func (s *Semaphore) TryWait() bool {
	return s.w.TryAcquire(1)
}
