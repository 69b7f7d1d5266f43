package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/chaoslab/pkg/cli"
	"mercator-hq/chaoslab/pkg/config"
	"mercator-hq/chaoslab/pkg/retention"
	"mercator-hq/chaoslab/pkg/telemetry/health"
	"mercator-hq/chaoslab/pkg/telemetry/logging"
	"mercator-hq/chaoslab/pkg/telemetry/metrics"
	"mercator-hq/chaoslab/pkg/telemetry/tracing"
)

// annotationPurgeInterval is how often expired annotations are removed.
const annotationPurgeInterval = time.Hour

var runFlags struct {
	listenAddress   string
	dryRun          bool
	shutdownTimeout time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the retention scheduler and telemetry endpoints",
	Long: `Run chaoslab as a long-lived process.

The process schedules the continuous and session retention jobs, keeps the
flag file watched for external edits, purges expired annotations and serves
Prometheus metrics plus /healthz, /readyz and /version.

Examples:
  # Start with a config file
  chaoslab run --config /etc/chaoslab/config.yaml

  # Override the metrics listen address
  chaoslab run --listen 0.0.0.0:9090

  # Validate config and backends without starting
  chaoslab run --dry-run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override metrics listen address")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and open backends without starting")
	runCmd.Flags().DurationVar(&runFlags.shutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown timeout")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if runFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = runFlags.listenAddress
	}

	b, err := openBackends(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer b.Close()

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Backends opened")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer shutdownTracer(tracer)

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	engine, err := retention.NewEngine(b.store, retention.Options{
		ListPageCap:       cfg.Retention.ListPageCap,
		SampleCap:         cfg.Retention.SampleCap,
		DeleteConcurrency: cfg.Retention.DeleteConcurrency,
		Metrics:           collector,
		Tracer:            tracer.Tracer(),
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	scheduler := retention.NewScheduler(engine, retention.Schedules{
		Continuous: cfg.Retention.ContinuousSchedule,
		Sessions:   cfg.Retention.SessionSchedule,
	})
	if cfg.Retention.Enabled {
		if err := scheduler.ScheduleRetentionJobs(ctx, retention.PolicyFromConfig(&cfg.Retention)); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer scheduler.Stop()
	} else {
		slog.Info("retention disabled")
	}

	if cfg.Flags.File.Watch {
		b.watchFlags(ctx)
	}
	if cfg.Annotations.DefaultTTL > 0 {
		go purgeAnnotations(ctx, b)
	}
	if cfgFile != "" {
		go reloadOnHangup(ctx, cfgFile)
	}

	checker := health.New(2 * time.Second)
	checker.RegisterCheck("object_store", health.StoreCheck(b.store))
	checker.RegisterCheck("annotations", health.AnnotationCheck(b.recorder))
	if cfg.Retention.Enabled {
		checker.RegisterCheck("retention_scheduler", health.RunningCheck("retention scheduler", scheduler.IsRunning))
	}

	srv, errCh, err := serveTelemetry(&cfg.Telemetry.Metrics, collector, checker)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chaoslab v%s\n", Version)
	if srv != nil {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Telemetry.Metrics.ListenAddress, cfg.Telemetry.Metrics.Path)
		fmt.Fprintf(out, "✓ Health endpoint: http://%s/healthz\n", cfg.Telemetry.Metrics.ListenAddress)
	}
	for _, job := range []string{retention.JobContinuous, retention.JobSessions} {
		if next := scheduler.NextRun(job); next != nil {
			fmt.Fprintf(out, "✓ Next %s cleanup: %s\n", job, next.Format(time.RFC3339))
		}
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		return cli.NewCommandError("run", err)
	case <-ctx.Done():
	}

	fmt.Fprintln(out, "\nShutting down gracefully...")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), runFlags.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry server shutdown failed", "error", err)
		}
	}
	return nil
}

// serveTelemetry starts the metrics and health server when metrics are
// enabled. Serve errors are delivered on the returned channel.
func serveTelemetry(mcfg *config.MetricsConfig, collector *metrics.Collector, checker *health.Checker) (*http.Server, <-chan error, error) {
	errCh := make(chan error, 1)
	if !mcfg.Enabled {
		return nil, errCh, nil
	}

	mux := http.NewServeMux()
	mux.Handle(mcfg.Path, collector.Handler())
	checker.Mount(mux, health.VersionInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate})

	listener, err := net.Listen("tcp", mcfg.ListenAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", mcfg.ListenAddress, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("serving telemetry endpoints", "address", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("telemetry server: %w", err)
		}
	}()

	return srv, errCh, nil
}

// purgeAnnotations deletes expired annotations until ctx is done.
func purgeAnnotations(ctx context.Context, b *backends) {
	ticker := time.NewTicker(annotationPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := b.recorder.DeleteExpired(ctx)
		if err != nil {
			slog.Warn("annotation purge failed", "error", err)
			continue
		}
		if n > 0 {
			slog.Info("expired annotations deleted", "count", n)
		}
	}
}

// reloadOnHangup re-reads the config file on SIGHUP and applies the new
// logging settings. Backends and schedules keep their startup values until
// the process restarts.
func reloadOnHangup(ctx context.Context, path string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		if err := config.ReloadConfig(path); err != nil {
			slog.Error("config reload failed, keeping previous config", "error", err)
			continue
		}
		if _, err := logging.Setup(&config.MustGetConfig().Telemetry.Logging); err != nil {
			slog.Error("failed to apply reloaded logging config", "error", err)
			continue
		}
		slog.Info("config reloaded", "path", path)
	}
}

func shutdownTracer(t *tracing.Tracer) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.Shutdown(ctx); err != nil {
		slog.Warn("tracer shutdown failed", "error", err)
	}
}
