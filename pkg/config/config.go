package config

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/memsched/pkg/errors"
	"github.com/ajitpratap0/memsched/pkg/logger"
	"github.com/ajitpratap0/memsched/pkg/memory"
	"github.com/ajitpratap0/memsched/pkg/workerpool"
)

// Config is the root configuration structure.
type Config struct {
	// Memory configures allocators and the size-class cache
	Memory MemoryConfig `yaml:"memory" json:"memory" mapstructure:"memory"`

	// Pool configures the worker pool
	Pool PoolConfig `yaml:"pool" json:"pool" mapstructure:"pool"`

	// Stress holds default sizes for stress scenarios
	Stress StressConfig `yaml:"stress" json:"stress" mapstructure:"stress"`

	// Logging configures the global zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`

	// Tracing configures OpenTelemetry tracing
	Tracing TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
}

// MemoryConfig contains allocator settings.
type MemoryConfig struct {
	// InitialSlots is the slot count of an allocator's first chunk
	InitialSlots int `yaml:"initial_slots" json:"initial_slots" mapstructure:"initial_slots"`
	// MaxSlots caps the slots an allocator may own (0 = no cap)
	MaxSlots int `yaml:"max_slots" json:"max_slots" mapstructure:"max_slots"`
	// Backoff yields between failed CAS attempts
	Backoff bool `yaml:"backoff" json:"backoff" mapstructure:"backoff"`
	// CacheMaxSize is the largest request served from a cache bucket
	CacheMaxSize int `yaml:"cache_max_size" json:"cache_max_size" mapstructure:"cache_max_size"`
	// CacheBucketSlots is the slot count of a bucket's first chunk
	CacheBucketSlots int `yaml:"cache_bucket_slots" json:"cache_bucket_slots" mapstructure:"cache_bucket_slots"`
	// CacheArenaBytes is the size of the cache's first arena chunk
	CacheArenaBytes int `yaml:"cache_arena_bytes" json:"cache_arena_bytes" mapstructure:"cache_arena_bytes"`
}

// PoolConfig contains worker pool settings.
type PoolConfig struct {
	// Name labels the pool in logs and metrics
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Workers is the worker count (0 = NumCPU - 1)
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
	// PinThreads locks each worker to an OS thread
	PinThreads bool `yaml:"pin_threads" json:"pin_threads" mapstructure:"pin_threads"`
	// QueueSlots is the initial node chunk of the task queue
	QueueSlots int `yaml:"queue_slots" json:"queue_slots" mapstructure:"queue_slots"`
}

// StressConfig contains stress scenario defaults.
type StressConfig struct {
	Producers int `yaml:"producers" json:"producers" mapstructure:"producers"`
	Consumers int `yaml:"consumers" json:"consumers" mapstructure:"consumers"`
	// Items is the number of items per producer
	Items int `yaml:"items" json:"items" mapstructure:"items"`
	// Tasks is the number of tasks submitted to the pool
	Tasks int `yaml:"tasks" json:"tasks" mapstructure:"tasks"`
	// Cycles is the number of allocate/deallocate cycles
	Cycles int `yaml:"cycles" json:"cycles" mapstructure:"cycles"`
	// Report is the output path; .zst and .lz4 suffixes compress it
	Report string `yaml:"report" json:"report" mapstructure:"report"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Address   string `yaml:"address" json:"address" mapstructure:"address"`
	Namespace string `yaml:"namespace" json:"namespace" mapstructure:"namespace"`
	// Duration bounds how long `memsched metrics` serves (0 = until interrupted)
	Duration time.Duration `yaml:"duration" json:"duration" mapstructure:"duration"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName  string  `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate" mapstructure:"sampling_rate"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Memory: MemoryConfig{
			InitialSlots:     memory.DefaultInitialSlots,
			CacheMaxSize:     memory.DefaultMaxCachedSize,
			CacheBucketSlots: memory.DefaultBucketSlots,
			CacheArenaBytes:  64 << 10,
		},
		Pool: PoolConfig{
			Name: "memsched",
		},
		Stress: StressConfig{
			Producers: 4,
			Consumers: 4,
			Items:     100000,
			Tasks:     1000,
			Cycles:    10000,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{
			Address:   ":9090",
			Namespace: "memsched",
		},
		Tracing: TracingConfig{
			ServiceName:  "memsched",
			SamplingRate: 1.0,
		},
	}
}

// Validate checks that values are within acceptable ranges.
func (c *Config) Validate() error {
	invalid := func(field, msg string, value interface{}) error {
		return errors.New(errors.ErrorTypeConfig, field+" "+msg).
			WithDetail("field", field).
			WithDetail("value", value)
	}

	switch {
	case c.Memory.InitialSlots <= 0:
		return invalid("memory.initial_slots", "must be positive", c.Memory.InitialSlots)
	case c.Memory.MaxSlots < 0:
		return invalid("memory.max_slots", "cannot be negative", c.Memory.MaxSlots)
	case c.Memory.MaxSlots > 0 && c.Memory.MaxSlots < c.Memory.InitialSlots:
		return invalid("memory.max_slots", "must be at least memory.initial_slots", c.Memory.MaxSlots)
	case c.Memory.CacheMaxSize <= 0:
		return invalid("memory.cache_max_size", "must be positive", c.Memory.CacheMaxSize)
	case c.Memory.CacheBucketSlots <= 0:
		return invalid("memory.cache_bucket_slots", "must be positive", c.Memory.CacheBucketSlots)
	case c.Memory.CacheArenaBytes <= 0:
		return invalid("memory.cache_arena_bytes", "must be positive", c.Memory.CacheArenaBytes)
	case c.Pool.Workers < 0:
		return invalid("pool.workers", "cannot be negative", c.Pool.Workers)
	case c.Stress.Producers <= 0:
		return invalid("stress.producers", "must be positive", c.Stress.Producers)
	case c.Stress.Consumers <= 0:
		return invalid("stress.consumers", "must be positive", c.Stress.Consumers)
	case c.Stress.Items <= 0:
		return invalid("stress.items", "must be positive", c.Stress.Items)
	case c.Stress.Tasks <= 0:
		return invalid("stress.tasks", "must be positive", c.Stress.Tasks)
	case c.Stress.Cycles <= 0:
		return invalid("stress.cycles", "must be positive", c.Stress.Cycles)
	case c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1:
		return invalid("tracing.sampling_rate", "must be between 0 and 1", c.Tracing.SamplingRate)
	}

	switch strings.ToLower(c.Logging.Encoding) {
	case "json", "console":
	default:
		return invalid("logging.encoding", "must be json or console", c.Logging.Encoding)
	}
	return nil
}

// AllocatorOptions converts the memory section into allocator options.
func (m MemoryConfig) AllocatorOptions(log *zap.Logger) []memory.Option {
	return []memory.Option{
		memory.WithInitialSlots(m.InitialSlots),
		memory.WithMaxSlots(m.MaxSlots),
		memory.WithBackoff(m.Backoff),
		memory.WithLogger(log),
	}
}

// CacheOptions converts the memory section into size-class cache options.
func (m MemoryConfig) CacheOptions(log *zap.Logger) []memory.CacheOption {
	return []memory.CacheOption{
		memory.WithMaxSize(m.CacheMaxSize),
		memory.WithBucketSlots(m.CacheBucketSlots),
		memory.WithArenaBytes(m.CacheArenaBytes),
		memory.WithCacheBackoff(m.Backoff),
		memory.WithCacheLogger(log),
	}
}

// WorkerConfig converts the pool section into a workerpool.Config.
func (p PoolConfig) WorkerConfig() workerpool.Config {
	return workerpool.Config{
		Name:       p.Name,
		Workers:    p.Workers,
		PinThreads: p.PinThreads,
		QueueSlots: p.QueueSlots,
	}
}

// LoggerConfig converts the logging section into a logger.Config.
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       l.Level,
		Encoding:    strings.ToLower(l.Encoding),
		Development: l.Development,
	}
}
