package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceMonitorUsage(t *testing.T) {
	rm, err := NewResourceMonitor()
	require.NoError(t, err)

	u := rm.Usage()
	assert.Positive(t, u.GoroutineCount)
	assert.Positive(t, u.HeapAlloc)
}

func TestSampler(t *testing.T) {
	s, err := NewSampler(5 * time.Millisecond)
	require.NoError(t, err)

	s.Start()
	buf := make([][]byte, 0, 64)
	for i := 0; i < 64; i++ {
		buf = append(buf, make([]byte, 64<<10))
	}
	time.Sleep(30 * time.Millisecond)
	sum := s.Stop()

	assert.GreaterOrEqual(t, sum.Samples, 2)
	assert.GreaterOrEqual(t, sum.PeakHeap, sum.Start.HeapAlloc)
	assert.GreaterOrEqual(t, sum.MaxGoroutines, 1)
	assert.Positive(t, sum.Duration)
	assert.Len(t, buf, 64)

	again := s.Stop()
	assert.Equal(t, sum, again, "second Stop returns the same summary")
}
