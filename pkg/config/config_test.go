package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/memsched/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memsched.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
memory:
  initial_slots: 128
  backoff: true
pool:
  name: ${MEMSCHED_TEST_POOL}
  workers: 2
metrics:
  duration: 5s
`), 0o600))
	t.Setenv("MEMSCHED_TEST_POOL", "ingest")
	t.Setenv("MEMSCHED_POOL_WORKERS", "6")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Memory.InitialSlots)
	assert.True(t, cfg.Memory.Backoff)
	assert.Equal(t, "ingest", cfg.Pool.Name)
	assert.Equal(t, 6, cfg.Pool.Workers, "environment wins over the file")
	assert.Equal(t, 5*time.Second, cfg.Metrics.Duration)
	assert.Equal(t, 4096, cfg.Memory.CacheMaxSize, "unset keys keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stress:\n  items: -1\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, "stress.items", errors.Details(err)["field"])
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Pool.Workers = 3
	cfg.Metrics.Duration = time.Minute
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"memory.initial_slots":  func(c *Config) { c.Memory.InitialSlots = 0 },
		"memory.max_slots":      func(c *Config) { c.Memory.MaxSlots = 1 },
		"pool.workers":          func(c *Config) { c.Pool.Workers = -1 },
		"tracing.sampling_rate": func(c *Config) { c.Tracing.SamplingRate = 2 },
		"logging.encoding":      func(c *Config) { c.Logging.Encoding = "xml" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, field, errors.Details(err)["field"])
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Pool.Workers = 5
	wc := cfg.Pool.WorkerConfig()
	assert.Equal(t, 5, wc.Workers)
	assert.Equal(t, "memsched", wc.Name)

	assert.Len(t, cfg.Memory.AllocatorOptions(nil), 4)
	assert.Len(t, cfg.Memory.CacheOptions(nil), 5)
	assert.Equal(t, "console", cfg.Logging.LoggerConfig().Encoding)
}
