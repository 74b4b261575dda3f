package memory

import (
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

const (
	// DefaultMaxCachedSize is the largest request served from a bucket when
	// no WithMaxSize option is given. Larger requests go to the Go heap.
	DefaultMaxCachedSize = 4096

	// DefaultBucketSlots is the slot count of a bucket's first chunk.
	DefaultBucketSlots = 32

	// sizeHeader is the debug-build size tag stored before each slot.
	sizeHeader = 8

	defaultArenaBytes = 64 << 10
)

type cacheOptions struct {
	maxSize     int
	bucketSlots int
	arenaBytes  int
	backoff     bool
	logger      *zap.Logger
}

// CacheOption configures a SizeClassCache.
type CacheOption func(*cacheOptions)

// WithMaxSize sets the largest request size kept in a bucket.
func WithMaxSize(n int) CacheOption {
	return func(o *cacheOptions) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithBucketSlots sets the slot count of each bucket's first chunk.
func WithBucketSlots(n int) CacheOption {
	return func(o *cacheOptions) {
		if n > 0 {
			o.bucketSlots = n
		}
	}
}

// WithArenaBytes sets the size of the first backing arena chunk.
func WithArenaBytes(n int) CacheOption {
	return func(o *cacheOptions) {
		if n > 0 {
			o.arenaBytes = n
		}
	}
}

// WithCacheBackoff makes failed CAS attempts yield before retrying.
func WithCacheBackoff(enabled bool) CacheOption {
	return func(o *cacheOptions) {
		o.backoff = enabled
	}
}

// WithCacheLogger attaches a logger for bucket creation and growth.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(o *cacheOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// SizeClassCache is a concurrent byte allocator with one free-list per
// exact request size. The bucket table is guarded by a RWMutex whose write
// side is taken only to insert a new size; allocation and release on an
// existing bucket go through the bucket's lock-free list.
type SizeClassCache struct {
	mu      sync.RWMutex
	buckets map[int]*bucket

	arenaMu sync.Mutex
	arena   *ChunkAllocator[byte]

	large      atomic.Int64
	largeBytes atomic.Int64

	opts   cacheOptions
	logger *zap.Logger
}

type bucket struct {
	size   int
	stride int
	list   slotList
	chunks [maxChunks]atomic.Pointer[[]byte]
	cache  *SizeClassCache
}

// CacheStats is a snapshot of a SizeClassCache.
type CacheStats struct {
	Buckets       int   `json:"buckets"`
	LiveSlots     int64 `json:"live_slots"`
	CapacityBytes int64 `json:"capacity_bytes"`
	ArenaBytes    int   `json:"arena_bytes"`
	LargeLive     int64 `json:"large_live"`
	LargeBytes    int64 `json:"large_bytes"`
}

// NewSizeClassCache creates an empty cache.
func NewSizeClassCache(opts ...CacheOption) *SizeClassCache {
	o := cacheOptions{
		maxSize:     DefaultMaxCachedSize,
		bucketSlots: DefaultBucketSlots,
		arenaBytes:  defaultArenaBytes,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &SizeClassCache{
		buckets: make(map[int]*bucket),
		arena:   NewChunkAllocator[byte](WithInitialSlots(o.arenaBytes), WithLogger(o.logger)),
		opts:    o,
		logger:  o.logger,
	}
}

// MaxSize returns the largest request size served from a bucket.
func (c *SizeClassCache) MaxSize() int { return c.opts.maxSize }

// Alloc returns a slice with len and cap equal to size. Contents are
// unspecified. It returns nil when size is not positive or when the
// bucket cannot grow.
func (c *SizeClassCache) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	if size > c.opts.maxSize {
		c.large.Add(1)
		c.largeBytes.Add(int64(size))
		return make([]byte, size)
	}

	b := c.bucket(size)
	i, ok := b.list.acquire(b.grow)
	if !ok {
		return nil
	}
	slot := b.slot(i)
	if debugEnabled {
		binary.LittleEndian.PutUint64(slot, uint64(size))
		return slot[sizeHeader : sizeHeader+size : sizeHeader+size]
	}
	return slot[:size:size]
}

// Dealloc returns p, obtained from Alloc(size), to the cache. The size
// must match the original request; debug builds verify it.
func (c *SizeClassCache) Dealloc(p []byte, size int) {
	if size <= 0 || cap(p) == 0 {
		return
	}
	if size > c.opts.maxSize {
		c.large.Add(-1)
		c.largeBytes.Add(-int64(size))
		return
	}

	c.mu.RLock()
	b := c.buckets[size]
	c.mu.RUnlock()
	if b == nil {
		protocolViolation("dealloc of %d bytes with no bucket", size)
		return
	}

	addr := uintptr(unsafe.Pointer(unsafe.SliceData(p)))
	if debugEnabled {
		addr -= sizeHeader
	}
	i, ok := b.index(addr)
	if !ok {
		protocolViolation("slice not owned by %d-byte bucket", size)
		return
	}
	if debugEnabled {
		if !b.list.inUse(i) {
			protocolViolation("double free of %d-byte slot %d", size, i)
			return
		}
		slot := b.slot(i)
		if got := binary.LittleEndian.Uint64(slot); got != uint64(size) {
			protocolViolation("dealloc size %d does not match allocation size %d", size, got)
			return
		}
		poison(slot[sizeHeader:])
	}
	b.list.release(i)
}

func (c *SizeClassCache) bucket(size int) *bucket {
	c.mu.RLock()
	b := c.buckets[size]
	c.mu.RUnlock()
	if b != nil {
		return b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b = c.buckets[size]; b != nil {
		return b
	}
	header := 0
	if debugEnabled {
		header = sizeHeader
	}
	b = &bucket{
		size:   size,
		stride: (size + header + 7) &^ 7,
		cache:  c,
	}
	b.list.init(c.opts.bucketSlots, MaxSlots, c.opts.backoff)
	c.buckets[size] = b
	c.logger.Debug("bucket created", zap.Int("size", size), zap.Int("stride", b.stride))
	return b
}

// carve takes n bytes from the shared arena.
func (c *SizeClassCache) carve(n int) []byte {
	c.arenaMu.Lock()
	defer c.arenaMu.Unlock()
	return c.arena.Allocate(n)
}

func (b *bucket) grow(k, n int) bool {
	mem := b.cache.carve(n * b.stride)
	if mem == nil {
		return false
	}
	b.chunks[k].Store(&mem)
	b.cache.logger.Debug("bucket grown",
		zap.Int("size", b.size),
		zap.Int("chunk", k),
		zap.Int("slots", n))
	return true
}

// slot returns the full stride of slot i, header included.
func (b *bucket) slot(i uint32) []byte {
	k, off := b.list.locate(i)
	mem := *b.chunks[k].Load()
	start := off * b.stride
	return mem[start : start+b.stride : start+b.stride]
}

func (b *bucket) index(addr uintptr) (uint32, bool) {
	for k := b.list.chunks() - 1; k >= 0; k-- {
		c := b.chunks[k].Load()
		if c == nil || len(*c) == 0 {
			continue
		}
		start := uintptr(unsafe.Pointer(unsafe.SliceData(*c)))
		if addr < start || addr >= start+uintptr(len(*c)) {
			continue
		}
		d := addr - start
		if d%uintptr(b.stride) != 0 {
			return 0, false
		}
		return b.list.chunkStart(k) + uint32(d/uintptr(b.stride)), true
	}
	return 0, false
}

// Buckets returns the cached request sizes in ascending order.
func (c *SizeClassCache) Buckets() []int {
	c.mu.RLock()
	sizes := make([]int, 0, len(c.buckets))
	for size := range c.buckets {
		sizes = append(sizes, size)
	}
	c.mu.RUnlock()
	sort.Ints(sizes)
	return sizes
}

// Stats returns a snapshot of the cache.
func (c *SizeClassCache) Stats() CacheStats {
	s := CacheStats{
		LargeLive:  c.large.Load(),
		LargeBytes: c.largeBytes.Load(),
	}
	c.mu.RLock()
	s.Buckets = len(c.buckets)
	for _, b := range c.buckets {
		s.LiveSlots += b.list.live.Load()
		s.CapacityBytes += int64(b.list.capacity()) * int64(b.stride)
	}
	c.mu.RUnlock()

	c.arenaMu.Lock()
	s.ArenaBytes = c.arena.Capacity()
	c.arenaMu.Unlock()
	return s
}

// Clear forgets every bucket and resets the backing arena. Slices handed
// out earlier must not be used or deallocated afterwards. Clear must not
// run concurrently with any other method.
func (c *SizeClassCache) Clear() {
	c.mu.Lock()
	n := len(c.buckets)
	for _, b := range c.buckets {
		for k := 0; k < b.list.chunks(); k++ {
			b.chunks[k].Store(nil)
		}
		b.list.reset()
	}
	c.buckets = make(map[int]*bucket)
	c.mu.Unlock()

	c.arenaMu.Lock()
	c.arena.Clear()
	c.arenaMu.Unlock()

	c.large.Store(0)
	c.largeBytes.Store(0)
	c.logger.Debug("cache cleared", zap.Int("buckets", n))
}
