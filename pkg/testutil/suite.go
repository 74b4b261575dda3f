package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// StressSuite provides a context, a temp directory and a test logger for
// suites that run long concurrent scenarios.
type StressSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *StressSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "memsched-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *StressSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *StressSuite) Context() context.Context {
	return s.ctx
}

// TempPath returns name joined to the suite's temp directory.
func (s *StressSuite) TempPath(name string) string {
	return filepath.Join(s.tempDir, name)
}

// Logger returns a logger writing to the current test's output.
func (s *StressSuite) Logger() *zap.Logger {
	return zaptest.NewLogger(s.T())
}

// SkipIfShort skips long-running tests in -short mode
func (s *StressSuite) SkipIfShort() {
	if testing.Short() {
		s.T().Skip("skipping long-running scenario in short mode")
	}
}
