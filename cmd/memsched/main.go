// Command memsched exercises the memsched allocators, queues and worker
// pool: it runs stress scenarios, serves their metrics and manages the
// configuration file.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/memsched/pkg/config"
	"github.com/ajitpratap0/memsched/pkg/logger"
	"github.com/ajitpratap0/memsched/pkg/observability"
)

var version = "0.1.0"

// app holds state shared by every subcommand after PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg            *config.Config
	log            *zap.Logger
	shutdownTracer func(context.Context) error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "memsched",
		Short: "memsched - concurrent allocators, queues and worker pool",
		Long: `memsched bundles lock-free block allocators, a size-class byte cache,
SPSC and MPMC queues and a worker pool. This command runs stress
scenarios against them and exposes their statistics to Prometheus.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log encoding (console, json); overrides the config file")

	root.AddCommand(
		newVersionCmd(),
		newStressCmd(a),
		newMetricsCmd(a),
		newConfigCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "memsched v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// setup loads the configuration, applies flag overrides and initializes
// logging and tracing.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Encoding = a.logFormat
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.log = logger.With(zap.String("component", "memsched-cli"))

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
			SamplingRate:   cfg.Tracing.SamplingRate,
			Writer:         os.Stderr,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.shutdownTracer = shutdown
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.shutdownTracer != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := a.shutdownTracer(ctx); err != nil {
			a.log.Warn("failed to flush traces", zap.Error(err))
		}
	}
	_ = logger.Sync()
	return nil
}
