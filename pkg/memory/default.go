package memory

import "sync/atomic"

var defaultCache atomic.Pointer[SizeClassCache]

// SetDefault installs c as the process-wide cache returned by Default.
// Passing nil removes it. Components that accept a cache explicitly never
// consult the default; only code that opts in by calling Default does.
func SetDefault(c *SizeClassCache) {
	defaultCache.Store(c)
}

// Default returns the cache installed by SetDefault, if any.
func Default() (*SizeClassCache, bool) {
	c := defaultCache.Load()
	return c, c != nil
}
