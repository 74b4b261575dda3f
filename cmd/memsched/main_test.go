package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/memsched/internal/report"
	"github.com/ajitpratap0/memsched/pkg/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "memsched v"+version)
}

func TestConfigInitAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memsched.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err)

	_, err = execute(t, "config", "init", "--force", path)
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Stress, cfg.Stress)

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "initial_slots:")
}

func TestStressWritesReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json.zst")

	out, err := execute(t, "stress", "spsc", "--items", "2000", "--report", path)
	require.NoError(t, err)
	assert.Contains(t, out, "spsc")
	assert.Contains(t, out, "PASSED")

	rep, err := report.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	assert.True(t, rep.Passed())
	assert.Equal(t, 2000, rep.Config.Items)
}

func TestStressUnknownScenario(t *testing.T) {
	_, err := execute(t, "stress", "bogus")
	require.Error(t, err)
}

func TestInvalidLogFormat(t *testing.T) {
	_, err := execute(t, "version", "--log-format", "xml")
	require.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "version", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
