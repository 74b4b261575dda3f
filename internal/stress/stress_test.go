package stress

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/memsched/pkg/config"
	"github.com/ajitpratap0/memsched/pkg/errors"
	"github.com/ajitpratap0/memsched/pkg/memory"
	"github.com/ajitpratap0/memsched/pkg/metrics"
	"github.com/ajitpratap0/memsched/pkg/testutil"
)

type StressTestSuite struct {
	testutil.StressSuite
}

func TestStressSuite(t *testing.T) {
	suite.Run(t, new(StressTestSuite))
}

func (s *StressTestSuite) runner(opts ...Option) *Runner {
	cfg := Config{
		Producers:    3,
		Consumers:    2,
		Workers:      4,
		Items:        5000,
		Tasks:        1000,
		Cycles:       500,
		InitialSlots: 8,
	}
	return New(cfg, append([]Option{WithLogger(s.Logger())}, opts...)...)
}

func (s *StressTestSuite) TestEveryScenarioPasses() {
	r := s.runner()
	for _, name := range Names() {
		s.Run(name, func() {
			res, err := r.Run(s.Context(), name)
			s.Require().NoError(err)
			s.True(res.Passed)
			s.Equal(name, res.Scenario)
			s.Positive(res.Ops)
			s.Empty(res.Error)
		})
	}
}

func (s *StressTestSuite) TestSPSCCountsBothEnds() {
	res, err := s.runner().Run(s.Context(), "spsc")
	s.Require().NoError(err)
	s.Equal(int64(2*5000), res.Ops)
}

func (s *StressTestSuite) TestPoolScenarioRunsTwoRounds() {
	res, err := s.runner().Run(s.Context(), "pool")
	s.Require().NoError(err)
	s.Equal(int64(2000), res.Ops)
}

func (s *StressTestSuite) TestMPMCSeesEveryItem() {
	res, err := s.runner().Run(s.Context(), "mpmc")
	s.Require().NoError(err)
	s.Equal(int64(2*3*5000), res.Ops)
	s.Equal(int64(3*5000), res.Details["items"])
}

func (s *StressTestSuite) TestRunAll() {
	s.SkipIfShort()
	results, err := s.runner().RunNamed(s.Context(), All)
	s.Require().NoError(err)
	s.Len(results, len(Names()))
	for i, name := range Names() {
		s.Equal(name, results[i].Scenario)
	}
}

func (s *StressTestSuite) TestCollectorSourcesRemovedAfterRun() {
	c := metrics.NewCollector("stress_test")
	r := s.runner(WithCollector(c))
	_, err := r.Run(s.Context(), "cache")
	s.Require().NoError(err)

	s.Zero(promtest.CollectAndCount(c))
}

func (s *StressTestSuite) TestDefaultCacheIsShared() {
	shared := memory.NewSizeClassCache()
	memory.SetDefault(shared)
	s.T().Cleanup(func() { memory.SetDefault(nil) })

	r := s.runner()
	for _, name := range []string{"cache", "arrow"} {
		_, err := r.Run(s.Context(), name)
		s.Require().NoError(err, name)
	}
	s.Contains(shared.Buckets(), 64)
	s.Zero(shared.Stats().LiveSlots)
}

func TestUnknownScenario(t *testing.T) {
	r := New(Config{}, WithLogger(testutil.TestLogger(t)))
	res, err := r.Run(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, "nope", res.Scenario)
	assert.Equal(t, "nope", errors.Details(err)["scenario"])
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(Config{Items: 100000}, WithLogger(testutil.TestLogger(t)))
	res, err := r.Run(ctx, "mpmc")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Passed)

	results, err := r.RunAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestConfigDefaults(t *testing.T) {
	r := New(Config{Producers: 2})
	cfg := r.Config()
	assert.Equal(t, 2, cfg.Producers)
	assert.Equal(t, DefaultConfig().Consumers, cfg.Consumers)
	assert.Equal(t, DefaultConfig().Items, cfg.Items)

	fc := FromConfig(config.Default())
	assert.Equal(t, config.Default().Stress.Items, fc.Items)
	assert.Equal(t, DefaultConfig().Workers, fc.Workers)
}

func TestTagRoundTrip(t *testing.T) {
	p, s := untag(tag(7, 123456))
	assert.Equal(t, 7, p)
	assert.Equal(t, 123456, s)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"alloc", "arrow", "cache", "chunks", "mpmc", "pool", "spsc"}, Names())
}
