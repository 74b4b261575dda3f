package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/memsched/internal/stress"
	"github.com/ajitpratap0/memsched/pkg/memory"
	"github.com/ajitpratap0/memsched/pkg/metrics"
)

func newMetricsCmd(a *app) *cobra.Command {
	var (
		addr     string
		duration time.Duration
		pause    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics while running a background workload",
		Long: `Repeatedly run every stress scenario and expose the live allocator,
cache, queue and pool statistics at /metrics.

Example:
  memsched metrics --addr :9090 --duration 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Metrics.Address
			}
			if !cmd.Flags().Changed("duration") {
				duration = a.cfg.Metrics.Duration
			}
			return a.serveMetrics(cmd.Context(), addr, duration, pause)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9090", "Listen address for /metrics")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 = until interrupted)")
	cmd.Flags().DurationVar(&pause, "pause", time.Second, "Idle time between workload rounds")
	return cmd
}

func (a *app) serveMetrics(ctx context.Context, addr string, duration, pause time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	if pause <= 0 {
		pause = time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collector := metrics.NewCollector(a.cfg.Metrics.Namespace)
	if err := prometheus.Register(collector); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}
	defer prometheus.Unregister(collector)

	// Every workload round draws from the same cache.
	memory.SetDefault(memory.NewSizeClassCache(a.cfg.Memory.CacheOptions(a.log)...))
	defer memory.SetDefault(nil)

	runner := stress.New(stress.FromConfig(a.cfg),
		stress.WithLogger(a.log),
		stress.WithCollector(collector),
		stress.WithAllocatorOptions(a.cfg.Memory.AllocatorOptions(a.log)...),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.workload(ctx, runner, pause)
	}()

	err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer, a.log)
	cancel()
	<-done
	return err
}

// workload runs every scenario in rounds until ctx is done.
func (a *app) workload(ctx context.Context, runner *stress.Runner, pause time.Duration) {
	ticker := time.NewTicker(pause)
	defer ticker.Stop()
	for round := 1; ; round++ {
		results, err := runner.RunAll(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			a.log.Error("workload round failed", zap.Int("round", round), zap.Error(err))
		} else {
			a.log.Debug("workload round finished", zap.Int("round", round), zap.Int("scenarios", len(results)))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
