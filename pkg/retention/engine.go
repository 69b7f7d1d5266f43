package retention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"mercator-hq/chaoslab/pkg/objectstore"
	"mercator-hq/chaoslab/pkg/telemetry/logging"
	"mercator-hq/chaoslab/pkg/telemetry/metrics"
	"mercator-hq/chaoslab/pkg/telemetry/tracing"
)

// Defaults for Options.
const (
	DefaultListPageCap       = 5000
	DefaultSampleCap         = 1000
	DefaultDeleteConcurrency = 10
)

// Job names used in logs and metrics.
const (
	JobContinuous = "continuous"
	JobSessions   = "sessions"
)

const day = 24 * time.Hour

// continuousKey matches continuous/{YYYY-MM-DD}/ and captures the date.
var continuousKey = regexp.MustCompile(`^continuous/(\d{4}-\d{2}-\d{2})/`)

// Options configures an Engine.
type Options struct {
	// ListPageCap bounds the objects listed per cleanup pass.
	ListPageCap int

	// SampleCap bounds the objects listed per prefix by GetStorageUsage.
	SampleCap int

	// DeleteConcurrency bounds in-flight deletes.
	DeleteConcurrency int

	// Metrics is optional.
	Metrics *metrics.Collector

	// Tracer defaults to the global OpenTelemetry tracer.
	Tracer trace.Tracer

	// Now overrides the clock.
	Now func() time.Time
}

// Engine runs retention against an object store. It never touches
// orchestrator state; sessions are known only through their metadata.json.
type Engine struct {
	store  objectstore.Store
	opts   Options
	tracer trace.Tracer
	logger *slog.Logger
}

// NewEngine creates a retention engine over store.
func NewEngine(store objectstore.Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if opts.ListPageCap <= 0 {
		opts.ListPageCap = DefaultListPageCap
	}
	if opts.SampleCap <= 0 {
		opts.SampleCap = DefaultSampleCap
	}
	if opts.DeleteConcurrency <= 0 {
		opts.DeleteConcurrency = DefaultDeleteConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("mercator-hq/chaoslab/retention")
	}

	return &Engine{
		store:  store,
		opts:   opts,
		tracer: tracer,
		logger: slog.Default().With("component", "retention.engine"),
	}, nil
}

// ContinuousDate parses the partition date of a continuous/ key.
func ContinuousDate(key string) (time.Time, bool) {
	m := continuousKey.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// CleanupContinuousData deletes continuous/ objects whose partition date is
// older than olderThanDays. At most ListPageCap objects are considered per
// call; undatable keys are skipped. Delete failures are collected in the
// result.
func (e *Engine) CleanupContinuousData(ctx context.Context, olderThanDays int) CleanupResult {
	start := e.opts.Now()
	ctx = logging.WithJob(ctx, JobContinuous)
	ctx, span := e.tracer.Start(ctx, "retention.continuous",
		trace.WithAttributes(tracing.AttrRetentionPrefix.String(objectstore.ContinuousPrefix)),
	)
	defer span.End()

	logger := logging.FromContext(ctx, e.logger)
	result := CleanupResult{ProcessedPaths: []string{}, Errors: []string{}}

	cutoff := start.UTC().AddDate(0, 0, -olderThanDays)

	objects, truncated, err := objectstore.ListBounded(ctx, e.store, objectstore.ContinuousPrefix, e.opts.ListPageCap)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list %s: %v", objectstore.ContinuousPrefix, err))
		logger.Error("continuous listing failed", "listed", len(objects), "error", err)
	}

	var expired []objectstore.Object
	undated := 0
	for _, obj := range objects {
		date, ok := ContinuousDate(obj.Key)
		if !ok {
			undated++
			continue
		}
		if date.Before(cutoff) {
			expired = append(expired, obj)
		}
	}

	e.deleteObjects(ctx, expired, &result)
	result.Duration = e.opts.Now().Sub(start)

	e.finish(span, JobContinuous, &result)
	logger.Info("continuous cleanup finished",
		"older_than_days", olderThanDays,
		"cutoff", cutoff.Format(time.DateOnly),
		"listed", len(objects),
		"listing_truncated", truncated,
		"undated_skipped", undated,
		"deleted_count", result.DeletedObjects,
		"freed_bytes", result.FreedSpaceBytes,
		"error_count", len(result.Errors),
		"duration", result.Duration,
	)

	return result
}

// ManageSessionData applies policy to one session's data. A session older
// than ArchiveAfterDays is reported archive-eligible; one older than
// MaxRetentionDays has every object under its prefix deleted when
// CleanupEnabled is set. The returned result is valid even with an error.
func (e *Engine) ManageSessionData(ctx context.Context, sessionID string, policy Policy) (CleanupResult, error) {
	start := e.opts.Now()
	result := CleanupResult{ProcessedPaths: []string{}, Errors: []string{}}

	if err := policy.Validate(); err != nil {
		return result, fmt.Errorf("invalid retention policy: %w", err)
	}

	ctx = logging.WithSessionID(logging.WithJob(ctx, JobSessions), sessionID)
	logger := logging.FromContext(ctx, e.logger)

	desc, err := e.loadDescriptor(ctx, sessionID)
	if err != nil {
		return result, err
	}

	age := start.Sub(desc.StartTime)

	if days := policy.Sessions.ArchiveAfterDays; days != nil && age > time.Duration(*days)*day {
		// No archival tier exists; eligibility is reported only.
		logger.Info("session eligible for archival",
			"age_days", int(age/day),
			"archive_after_days", *days,
		)
	}

	if !policy.Sessions.CleanupEnabled || age <= time.Duration(policy.Sessions.MaxRetentionDays)*day {
		logger.Debug("session data retained",
			"age_days", int(age/day),
			"max_retention_days", policy.Sessions.MaxRetentionDays,
			"cleanup_enabled", policy.Sessions.CleanupEnabled,
		)
		result.Duration = e.opts.Now().Sub(start)
		return result, nil
	}

	ctx, span := e.tracer.Start(ctx, "retention.session",
		trace.WithAttributes(tracing.AttrSessionID.String(sessionID)),
	)
	defer span.End()

	prefix := objectstore.SessionPrefix(sessionID)
	token := ""
	for {
		page, err := e.store.List(ctx, objectstore.ListOptions{
			Prefix:     prefix,
			MaxKeys:    e.opts.ListPageCap,
			StartAfter: token,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("list %s: %v", prefix, err))
			break
		}

		e.deleteObjects(ctx, page.Objects, &result)

		if !page.Truncated {
			break
		}
		token = page.NextToken
	}

	result.Duration = e.opts.Now().Sub(start)
	e.finish(span, JobSessions, &result)

	logger.Info("expired session data deleted",
		"age_days", int(age/day),
		"max_retention_days", policy.Sessions.MaxRetentionDays,
		"deleted_count", result.DeletedObjects,
		"freed_bytes", result.FreedSpaceBytes,
		"error_count", len(result.Errors),
	)

	return result, nil
}

// CleanupSessions applies policy to every session whose descriptor appears
// in one bounded page of the sessions/ namespace.
func (e *Engine) CleanupSessions(ctx context.Context, policy Policy) CleanupResult {
	start := e.opts.Now()
	ctx = logging.WithJob(ctx, JobSessions)
	logger := logging.FromContext(ctx, e.logger)

	result := CleanupResult{ProcessedPaths: []string{}, Errors: []string{}}

	if err := policy.Validate(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid retention policy: %v", err))
		result.Duration = e.opts.Now().Sub(start)
		return result
	}

	objects, _, err := objectstore.ListBounded(ctx, e.store, objectstore.SessionsPrefix, e.opts.ListPageCap)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list %s: %v", objectstore.SessionsPrefix, err))
	}

	sessions := 0
	for _, obj := range objects {
		id, ok := objectstore.SessionIDFromMetadataKey(obj.Key)
		if !ok {
			continue
		}
		sessions++

		sessionResult, err := e.ManageSessionData(ctx, id, policy)
		result.merge(&sessionResult)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	result.Duration = e.opts.Now().Sub(start)
	logger.Info("session cleanup finished",
		"sessions", sessions,
		"deleted_count", result.DeletedObjects,
		"freed_bytes", result.FreedSpaceBytes,
		"error_count", len(result.Errors),
		"duration", result.Duration,
	)

	return result
}

// GetStorageUsage samples at most SampleCap objects under each root prefix.
// The report is approximate whenever a sample was truncated.
func (e *Engine) GetStorageUsage(ctx context.Context) (*StorageMetrics, error) {
	report := &StorageMetrics{SampledAt: e.opts.Now()}

	continuous, _, err := e.sample(ctx, objectstore.ContinuousPrefix)
	if err != nil {
		return nil, err
	}
	report.Continuous = continuous

	sessions, objects, err := e.sample(ctx, objectstore.SessionsPrefix)
	if err != nil {
		return nil, err
	}
	report.Sessions = sessions

	for _, obj := range objects {
		id, ok := objectstore.SessionIDFromMetadataKey(obj.Key)
		if !ok {
			continue
		}
		desc, err := e.loadDescriptor(ctx, id)
		if err != nil {
			e.logger.Debug("skipping unreadable session descriptor", "session_id", id, "error", err)
			continue
		}
		if desc.Finished() {
			report.CompletedSessions++
		} else {
			report.ActiveSessions++
		}
	}

	for _, usage := range []PrefixUsage{report.Continuous, report.Sessions} {
		e.opts.Metrics.UpdateStorageSample(usage.Prefix, usage.TotalObjects, usage.TotalSizeBytes, usage.Sampled)
	}

	return report, nil
}

func (e *Engine) sample(ctx context.Context, prefix string) (PrefixUsage, []objectstore.Object, error) {
	usage := PrefixUsage{Prefix: prefix, SampleCap: e.opts.SampleCap}

	objects, truncated, err := objectstore.ListBounded(ctx, e.store, prefix, e.opts.SampleCap)
	if err != nil {
		return usage, nil, fmt.Errorf("sample %s: %w", prefix, err)
	}

	usage.Sampled = truncated
	usage.TotalObjects = len(objects)
	for i := range objects {
		obj := &objects[i]
		usage.TotalSizeBytes += obj.Size
		if usage.OldestObject == nil || obj.LastModified.Before(*usage.OldestObject) {
			t := obj.LastModified
			usage.OldestObject = &t
		}
		if usage.NewestObject == nil || obj.LastModified.After(*usage.NewestObject) {
			t := obj.LastModified
			usage.NewestObject = &t
		}
	}

	return usage, objects, nil
}

// ArchiveOldSessions returns an empty, successful result. There is no
// archival tier to move sessions to.
func (e *Engine) ArchiveOldSessions(ctx context.Context, olderThanDays int) CleanupResult {
	e.logger.Debug("archive requested; no archival tier configured", "older_than_days", olderThanDays)
	return CleanupResult{ProcessedPaths: []string{}, Errors: []string{}}
}

func (e *Engine) loadDescriptor(ctx context.Context, sessionID string) (*objectstore.SessionDescriptor, error) {
	data, _, err := e.store.Get(ctx, objectstore.SessionMetadataKey(sessionID))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, NewSessionNotFoundError(sessionID, err)
		}
		return nil, NewSessionDataError(sessionID, "load metadata", err)
	}

	var desc objectstore.SessionDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, NewSessionDataError(sessionID, "decode metadata", err)
	}
	if desc.StartTime.IsZero() {
		return nil, NewSessionDataError(sessionID, "decode metadata", errors.New("start_time missing"))
	}
	return &desc, nil
}

// deleteObjects deletes objects with bounded concurrency and folds the
// outcome into result. It never stops early on a failed delete.
func (e *Engine) deleteObjects(ctx context.Context, objects []objectstore.Object, result *CleanupResult) {
	if len(objects) == 0 {
		return
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.opts.DeleteConcurrency)

	for _, obj := range objects {
		g.Go(func() error {
			err := e.store.Delete(ctx, obj.Key)

			mu.Lock()
			defer mu.Unlock()

			result.ProcessedPaths = append(result.ProcessedPaths, obj.Key)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", obj.Key, err))
				return nil
			}
			result.DeletedObjects++
			result.FreedSpaceBytes += obj.Size
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(result.ProcessedPaths)
	sort.Strings(result.Errors)
}

func (e *Engine) finish(span trace.Span, job string, result *CleanupResult) {
	span.SetAttributes(tracing.CleanupAttributes(job, result.DeletedObjects, result.FreedSpaceBytes, len(result.Errors))...)
	if len(result.Errors) > 0 {
		span.SetAttributes(attribute.String("chaoslab.retention.first_error", result.Errors[0]))
	}
	e.opts.Metrics.RecordCleanup(job, result.DeletedObjects, result.FreedSpaceBytes, len(result.Errors), result.Duration)
}
