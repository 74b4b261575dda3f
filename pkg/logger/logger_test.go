package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resetGlobal(t *testing.T) {
	t.Cleanup(func() {
		mu.Lock()
		global = nil
		mu.Unlock()
	})
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestInitWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, Init(Config{Level: "debug", Encoding: "json", OutputPaths: []string{path}}))
	resetGlobal(t)

	ctx := ContextWithScenario(ContextWithComponent(context.Background(), "pool"), "mpmc")
	FromContext(ctx).Info("hello")
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"timestamp":`)
	assert.Contains(t, string(data), `"component":"pool"`)
	assert.Contains(t, string(data), `"scenario":"mpmc"`)
}

func TestFromContextPrefersStoredLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := IntoContext(context.Background(), zap.New(core))
	ctx = ContextWithScenario(ctx, "spsc")

	FromContext(ctx).Debug("scoped")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "scoped", entry.Message)
	assert.Equal(t, "spsc", entry.ContextMap()["scenario"])
}

func TestGetBuildsDefault(t *testing.T) {
	mu.Lock()
	global = nil
	mu.Unlock()
	resetGlobal(t)
	assert.NotNil(t, Get())
	assert.NotNil(t, FromContext(context.Background()))
}
