package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCache(t *testing.T) {
	t.Cleanup(func() { SetDefault(nil) })

	_, ok := Default()
	assert.False(t, ok)

	c := NewSizeClassCache()
	SetDefault(c)
	got, ok := Default()
	assert.True(t, ok)
	assert.Same(t, c, got)

	SetDefault(nil)
	_, ok = Default()
	assert.False(t, ok)
}
