package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/chaoslab/pkg/telemetry/metrics"
)

// DefaultSchedule runs each retention job once a day.
const DefaultSchedule = "@every 24h"

// scheduleParser accepts standard five-field expressions and descriptors
// such as "@daily" or "@every 6h".
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedules holds the cron expression of each retention job.
type Schedules struct {
	Continuous string
	Sessions   string
}

// Scheduler runs the continuous and session cleanup jobs on independent
// cron schedules. A failing or panicking run is logged and the schedule
// keeps firing.
type Scheduler struct {
	engine    *Engine
	schedules Schedules
	metrics   *metrics.Collector
	cron      *cron.Cron
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
	entries   map[string]cron.EntryID
}

// NewScheduler creates a scheduler for engine. Empty schedules fall back to
// DefaultSchedule.
func NewScheduler(engine *Engine, schedules Schedules) *Scheduler {
	if schedules.Continuous == "" {
		schedules.Continuous = DefaultSchedule
	}
	if schedules.Sessions == "" {
		schedules.Sessions = DefaultSchedule
	}

	logger := slog.Default().With("component", "retention.scheduler")
	adapter := cronLogger{logger: logger}

	return &Scheduler{
		engine:    engine,
		schedules: schedules,
		metrics:   engine.opts.Metrics,
		cron: cron.New(
			cron.WithParser(scheduleParser),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// ScheduleRetentionJobs registers the jobs enabled by policy and starts the
// scheduler. The scheduler stops when ctx is cancelled. With neither job
// enabled it does nothing.
func (s *Scheduler) ScheduleRetentionJobs(ctx context.Context, policy Policy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid retention policy: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("retention scheduler already running")
	}

	if policy.Continuous.Enabled {
		days := policy.Continuous.RetentionDays
		if err := s.add(JobContinuous, s.schedules.Continuous, func() error {
			result := s.engine.CleanupContinuousData(ctx, days)
			return resultError(&result)
		}); err != nil {
			return err
		}
	}

	if policy.Sessions.CleanupEnabled {
		if err := s.add(JobSessions, s.schedules.Sessions, func() error {
			result := s.engine.CleanupSessions(ctx, policy)
			return resultError(&result)
		}); err != nil {
			return err
		}
	}

	if len(s.entries) == 0 {
		s.logger.Info("no retention jobs enabled, skipping scheduler")
		return nil
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"continuous_schedule", s.schedules.Continuous,
		"sessions_schedule", s.schedules.Sessions,
		"continuous_retention_days", policy.Continuous.RetentionDays,
		"session_max_retention_days", policy.Sessions.MaxRetentionDays,
		"jobs", len(s.entries),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) add(job, schedule string, run func() error) error {
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", job, schedule, err)
	}

	id, err := s.cron.AddJob(schedule, s.wrap(job, run))
	if err != nil {
		return fmt.Errorf("failed to schedule %s cleanup: %w", job, err)
	}
	s.entries[job] = id
	return nil
}

// wrap logs and records the outcome of one run. A panic propagates to the
// cron.Recover wrapper after the run is recorded.
func (s *Scheduler) wrap(job string, run func() error) cron.Job {
	return cron.FuncJob(func() {
		logger := s.logger.With("job", job)
		logger.Info("starting scheduled retention run")

		start := time.Now()
		result := "panic"
		defer func() {
			s.metrics.RecordScheduledRun(job, result)
		}()

		if err := run(); err != nil {
			result = "error"
			logger.Error("scheduled retention run failed",
				"error", err,
				"duration", time.Since(start),
			)
			return
		}

		result = "success"
		logger.Info("scheduled retention run completed", "duration", time.Since(start))
	})
}

// Stop stops the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled time of job, or nil when job is not
// scheduled.
func (s *Scheduler) NextRun(job string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[job]
	if !ok {
		return nil
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() || entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

func resultError(result *CleanupResult) error {
	if len(result.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("%d cleanup errors, first: %s", len(result.Errors), result.Errors[0])
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
