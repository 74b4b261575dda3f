package workerpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreStartsEmpty(t *testing.T) {
	s := NewSemaphore(0)
	assert.False(t, s.TryWait())

	s.Notify(2)
	assert.True(t, s.TryWait())
	assert.True(t, s.TryWait())
	assert.False(t, s.TryWait())
}

func TestSemaphoreInitialPermits(t *testing.T) {
	s := NewSemaphore(3)
	for i := 0; i < 3; i++ {
		require.True(t, s.TryWait())
	}
	assert.False(t, s.TryWait())
}

func TestSemaphoreWakesWaiter(t *testing.T) {
	s := NewSemaphore(0)
	woke := make(chan struct{})
	go func() {
		s.Wait()
		close(woke)
	}()

	select {
	case <-woke:
		t.Fatal("Wait returned without a permit")
	case <-time.After(20 * time.Millisecond):
	}
	s.Notify(1)
	select {
	case <-woke:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestSemaphoreWaitContext(t *testing.T) {
	s := NewSemaphore(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitContext(ctx), context.DeadlineExceeded)
}
