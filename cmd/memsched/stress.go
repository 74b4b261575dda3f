package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/memsched/internal/report"
	"github.com/ajitpratap0/memsched/internal/stress"
	"github.com/ajitpratap0/memsched/pkg/performance"
)

func newStressCmd(a *app) *cobra.Command {
	var (
		workers, producers, consumers, items int
		reportPath                           string
		timeout                              time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stress <scenario>",
		Short: "Run a stress scenario",
		Long: fmt.Sprintf(`Run a stress scenario and check its invariants.

Scenarios: %s, or %q to run them all.

A report path ending in .zst, .lz4, .gz, .sz or .s2 is written compressed.

Example:
  memsched stress mpmc --producers 8 --consumers 8 --items 250000
  memsched stress all --report results.json.zst`, strings.Join(stress.Names(), ", "), stress.All),
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(stress.Names(), stress.All),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := stress.FromConfig(a.cfg)
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if cmd.Flags().Changed("producers") {
				cfg.Producers = producers
			}
			if cmd.Flags().Changed("consumers") {
				cfg.Consumers = consumers
			}
			if cmd.Flags().Changed("items") {
				cfg.Items = items
			}
			if reportPath == "" {
				reportPath = a.cfg.Stress.Report
			}
			return a.runStress(cmd, args[0], cfg, reportPath, timeout)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Pool workers and allocator goroutines (default from config)")
	cmd.Flags().IntVarP(&producers, "producers", "p", 0, "MPMC producer goroutines (default from config)")
	cmd.Flags().IntVar(&consumers, "consumers", 0, "MPMC consumer goroutines (default from config)")
	cmd.Flags().IntVarP(&items, "items", "n", 0, "Items per producer (default from config)")
	cmd.Flags().StringVarP(&reportPath, "report", "r", "", "Write a JSON report to this path")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Abort the run after this long")
	return cmd
}

func (a *app) runStress(cmd *cobra.Command, scenario string, cfg stress.Config, reportPath string, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runner := stress.New(cfg,
		stress.WithLogger(a.log),
		stress.WithAllocatorOptions(a.cfg.Memory.AllocatorOptions(a.log)...),
		stress.WithCacheOptions(a.cfg.Memory.CacheOptions(a.log)...),
	)
	rep := report.New(version, runner.Config())

	sampler, err := performance.NewSampler(0)
	if err != nil {
		a.log.Warn("resource sampling unavailable", zap.Error(err))
	} else {
		sampler.Start()
	}

	a.log.Info("starting stress run",
		zap.String("scenario", scenario),
		zap.Int("workers", cfg.Workers),
		zap.Int("producers", cfg.Producers),
		zap.Int("consumers", cfg.Consumers),
		zap.Int("items", cfg.Items))

	results, runErr := runner.RunNamed(ctx, scenario)

	var resources *performance.Summary
	if sampler != nil {
		s := sampler.Stop()
		resources = &s
	}
	rep.Finish(results, resources)
	printResults(cmd, rep)

	if reportPath != "" {
		if err := rep.WriteFile(reportPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		a.log.Info("report written", zap.String("path", reportPath))
	}
	if runErr != nil {
		return fmt.Errorf("stress run failed: %w", runErr)
	}
	return nil
}

func printResults(cmd *cobra.Command, rep *report.Report) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tSTATUS\tOPS\tDURATION\tOPS/SEC")
	for _, res := range rep.Results {
		status := "PASSED"
		if !res.Passed {
			status = "FAILED"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.0f\n",
			res.Scenario, status, res.Ops, res.Duration.Round(time.Microsecond), res.OpsPerSec)
	}
	_ = w.Flush()

	if r := rep.Resources; r != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\npeak RSS %d MiB, peak heap %d MiB, max goroutines %d over %s\n",
			r.PeakRSS>>20, r.PeakHeap>>20, r.MaxGoroutines, r.Duration.Round(time.Millisecond))
	}
}
