package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunConcurrently(t *testing.T) {
	var hits atomic.Int64
	var mask atomic.Uint64
	RunConcurrently(t, 8, 5*time.Second, func(i int) {
		hits.Add(1)
		for {
			old := mask.Load()
			if mask.CompareAndSwap(old, old|1<<uint(i)) {
				return
			}
		}
	})
	assert.Equal(t, int64(8), hits.Load())
	assert.Equal(t, uint64(0xFF), mask.Load())
}

func TestAssertEventually(t *testing.T) {
	start := time.Now()
	AssertEventually(t, func() bool { return time.Since(start) > 20*time.Millisecond }, time.Second, "clock advances")
}
