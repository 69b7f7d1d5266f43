package retention

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"

	"mercator-hq/chaoslab/pkg/config"
	"mercator-hq/chaoslab/pkg/objectstore"
	"mercator-hq/chaoslab/pkg/telemetry/metrics"
)

func TestScheduler_ScheduleRetentionJobs(t *testing.T) {
	tests := []struct {
		name        string
		schedules   Schedules
		policy      Policy
		wantRunning bool
		wantJobs    []string
		wantError   bool
	}{
		{
			name:        "default schedules",
			policy:      testPolicy(30, true),
			wantRunning: true,
			wantJobs:    []string{JobContinuous, JobSessions},
		},
		{
			name:        "standard cron expressions",
			schedules:   Schedules{Continuous: "0 3 * * *", Sessions: "30 4 * * 0"},
			policy:      testPolicy(30, true),
			wantRunning: true,
			wantJobs:    []string{JobContinuous, JobSessions},
		},
		{
			name:        "session cleanup disabled",
			policy:      testPolicy(30, false),
			wantRunning: true,
			wantJobs:    []string{JobContinuous},
		},
		{
			name: "nothing enabled",
			policy: Policy{
				Continuous: ContinuousPolicy{RetentionDays: 7},
				Sessions:   SessionPolicy{MaxRetentionDays: 30},
			},
			wantRunning: false,
		},
		{
			name:      "invalid schedule",
			schedules: Schedules{Continuous: "not a schedule"},
			policy:    testPolicy(30, true),
			wantError: true,
		},
		{
			name: "invalid policy",
			policy: Policy{
				Continuous: ContinuousPolicy{RetentionDays: -1, Enabled: true},
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, objectstore.NewMemoryStore(), Options{})
			scheduler := NewScheduler(engine, tt.schedules)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			defer scheduler.Stop()

			err := scheduler.ScheduleRetentionJobs(ctx, tt.policy)
			if (err != nil) != tt.wantError {
				t.Fatalf("ScheduleRetentionJobs() error = %v, wantError %v", err, tt.wantError)
			}

			if scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", scheduler.IsRunning(), tt.wantRunning)
			}

			for _, job := range tt.wantJobs {
				next := scheduler.NextRun(job)
				if next == nil {
					t.Errorf("NextRun(%q) = nil", job)
					continue
				}
				if !next.After(time.Now().Add(-time.Second)) {
					t.Errorf("NextRun(%q) = %v, want a future time", job, next)
				}
			}
		})
	}
}

func TestScheduler_AlreadyRunning(t *testing.T) {
	engine := newTestEngine(t, objectstore.NewMemoryStore(), Options{})
	scheduler := NewScheduler(engine, Schedules{})
	defer scheduler.Stop()

	ctx := context.Background()
	if err := scheduler.ScheduleRetentionJobs(ctx, testPolicy(30, true)); err != nil {
		t.Fatalf("first ScheduleRetentionJobs() error = %v", err)
	}
	if err := scheduler.ScheduleRetentionJobs(ctx, testPolicy(30, true)); err == nil {
		t.Error("second ScheduleRetentionJobs() expected error")
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	engine := newTestEngine(t, objectstore.NewMemoryStore(), Options{})
	scheduler := NewScheduler(engine, Schedules{})

	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.ScheduleRetentionJobs(ctx, testPolicy(30, true)); err != nil {
		t.Fatalf("ScheduleRetentionJobs() error = %v", err)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for scheduler.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if scheduler.IsRunning() {
		t.Error("scheduler still running after context cancellation")
	}
}

func TestScheduler_RunsContinuousCleanup(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a cron tick")
	}

	store := objectstore.NewMemoryStore()
	putObject(t, store, "continuous/2020-01-01/old.bin", 10)
	putObject(t, store, "continuous/2024-06-15/new.bin", 10)

	engine := newTestEngine(t, store, Options{})
	scheduler := NewScheduler(engine, Schedules{Continuous: "@every 1s", Sessions: "@every 1h"})
	defer scheduler.Stop()

	if err := scheduler.ScheduleRetentionJobs(context.Background(), testPolicy(30, true)); err != nil {
		t.Fatalf("ScheduleRetentionJobs() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for store.Has("continuous/2020-01-01/old.bin") && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	if store.Has("continuous/2020-01-01/old.bin") {
		t.Error("expired object not deleted by scheduled run")
	}
	if !store.Has("continuous/2024-06-15/new.bin") {
		t.Error("fresh object deleted by scheduled run")
	}
}

func TestScheduler_RunOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, registry)

	engine := newTestEngine(t, objectstore.NewMemoryStore(), Options{Metrics: collector})
	scheduler := NewScheduler(engine, Schedules{})
	adapter := cronLogger{logger: slog.Default()}
	chain := cron.NewChain(cron.Recover(adapter))

	var calls atomic.Int32
	runs := []func() error{
		func() error { calls.Add(1); return nil },
		func() error { calls.Add(1); return errors.New("store unavailable") },
		func() error { calls.Add(1); panic("boom") },
	}

	for _, run := range runs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("panic escaped the job chain: %v", r)
				}
			}()
			chain.Then(scheduler.wrap(JobContinuous, run)).Run()
		}()
	}

	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}

	expected := `
# HELP chaoslab_retention_runs_total Total number of scheduled retention runs
# TYPE chaoslab_retention_runs_total counter
chaoslab_retention_runs_total{job="continuous",result="error"} 1
chaoslab_retention_runs_total{job="continuous",result="panic"} 1
chaoslab_retention_runs_total{job="continuous",result="success"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "chaoslab_retention_runs_total"); err != nil {
		t.Error(err)
	}
}

func TestResultError(t *testing.T) {
	if err := resultError(&CleanupResult{}); err != nil {
		t.Errorf("resultError(empty) = %v, want nil", err)
	}
	if err := resultError(&CleanupResult{Errors: []string{"delete a: boom", "delete b: boom"}}); err == nil {
		t.Error("resultError() = nil, want error")
	}
}
