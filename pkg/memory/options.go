package memory

import "go.uber.org/zap"

const (
	// DefaultInitialSlots is the slot count of the first chunk when no
	// WithInitialSlots option is given.
	DefaultInitialSlots = 64

	// MaxSlots is the largest number of slots a single free-list can index.
	// Slot indices share a 64-bit word with the generation counter.
	MaxSlots = 1<<32 - 2
)

type options struct {
	initialSlots int
	maxSlots     int
	backoff      bool
	logger       *zap.Logger
}

// Option configures ChunkAllocator and LockFreeAllocator instances.
type Option func(*options)

// WithInitialSlots sets the slot count of the first chunk.
func WithInitialSlots(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialSlots = n
		}
	}
}

// WithMaxSlots caps the total number of slots an allocator may own. Once
// the cap is reached, allocations that need a new chunk return nil. Zero
// means no cap beyond MaxSlots.
func WithMaxSlots(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxSlots = n
		}
	}
}

// WithBackoff makes failed CAS attempts yield the processor before
// retrying. The default is a plain busy retry.
func WithBackoff(enabled bool) Option {
	return func(o *options) {
		o.backoff = enabled
	}
}

// WithLogger attaches a logger used for chunk growth and clear events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		initialSlots: DefaultInitialSlots,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSlots == 0 || o.maxSlots > MaxSlots {
		o.maxSlots = MaxSlots
	}
	return o
}
