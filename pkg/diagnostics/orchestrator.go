package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/chaoslab/pkg/annotations"
	"mercator-hq/chaoslab/pkg/flags"
	"mercator-hq/chaoslab/pkg/objectstore"
	"mercator-hq/chaoslab/pkg/telemetry/logging"
	"mercator-hq/chaoslab/pkg/telemetry/metrics"
	"mercator-hq/chaoslab/pkg/telemetry/tracing"
)

const (
	// DefaultAnalysisDelay is the pause between disabling the flag and
	// completing the session.
	DefaultAnalysisDelay = time.Second

	// DefaultCallTimeout bounds each flag or annotation call.
	DefaultCallTimeout = 10 * time.Second

	// DefaultAnnotationCreator is the provenance label on session annotations.
	DefaultAnnotationCreator = "diagnostics"
)

var validate = validator.New()

// Options configures an Orchestrator.
type Options struct {
	// Flags toggles the fault flag. Required.
	Flags flags.Controller

	// Annotations records phase markers. Required.
	Annotations annotations.Recorder

	// Store, when set, receives sessions/{id}/metadata.json on start and on
	// every terminal transition.
	Store objectstore.Store

	// Metrics is optional.
	Metrics *metrics.Collector

	// Tracer defaults to the global OpenTelemetry tracer.
	Tracer trace.Tracer

	// AnalysisDelay overrides DefaultAnalysisDelay.
	AnalysisDelay time.Duration

	// CallTimeout overrides DefaultCallTimeout.
	CallTimeout time.Duration

	// AnnotationCreator overrides DefaultAnnotationCreator.
	AnnotationCreator string

	// DisableFlagOnFailure turns the flag off when a session fails while
	// it is on. By default a failed session leaves the flag as it was.
	DisableFlagOnFailure bool

	// SessionScopedAnnotations makes GetSessionAnnotations filter by session
	// id. By default it returns every annotation carrying the creator label.
	SessionScopedAnnotations bool
}

// Orchestrator runs diagnostic sessions. Each started session is driven by
// its own goroutine through the stage table in machine.go.
type Orchestrator struct {
	registry *Registry
	opts     Options
	tracer   trace.Tracer
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Flags == nil {
		return nil, errors.New("flag controller is required")
	}
	if opts.Annotations == nil {
		return nil, errors.New("annotation recorder is required")
	}
	if opts.AnalysisDelay <= 0 {
		opts.AnalysisDelay = DefaultAnalysisDelay
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.AnnotationCreator == "" {
		opts.AnnotationCreator = DefaultAnnotationCreator
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("mercator-hq/chaoslab/diagnostics")
	}

	return &Orchestrator{
		registry: NewRegistry(),
		opts:     opts,
		tracer:   tracer,
		logger:   slog.Default().With("component", "diagnostics.orchestrator"),
	}, nil
}

// CreateSession registers a new session in phase created. Unset timings
// take their defaults. The only error is a config without a flag name.
func (o *Orchestrator) CreateSession(cfg SessionConfig) (*Session, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	id := uuid.New().String()
	name := cfg.Name
	if name == "" {
		name = cfg.FlagName + "-" + id[:8]
	}

	var metadata map[string]any
	if cfg.Metadata != nil {
		metadata = make(map[string]any, len(cfg.Metadata))
		for k, v := range cfg.Metadata {
			metadata[k] = v
		}
	}

	s := &Session{
		ID:              id,
		Name:            name,
		FlagName:        cfg.FlagName,
		Phase:           PhaseCreated,
		StartTime:       time.Now(),
		CaptureInterval: msOrDefault(cfg.CaptureIntervalMs, DefaultCaptureIntervalMs),
		WarmupDelay:     msOrDefault(cfg.WarmupDelayMs, DefaultWarmupDelayMs),
		TestDuration:    msOrDefault(cfg.TestDurationMs, DefaultTestDurationMs),
		AnnotationIDs:   []string{},
		Metadata:        metadata,
	}

	e := o.registry.add(s)

	o.logger.Info("session created",
		"session_id", s.ID,
		"name", s.Name,
		"flag", s.FlagName,
		"capture_interval", s.CaptureInterval,
		"warmup_delay", s.WarmupDelay,
		"test_duration", s.TestDuration,
	)

	return e.snapshot(), nil
}

// StartSession moves a created session to started and launches its
// orchestration in the background. It returns immediately; failures inside
// the sequence are recorded on the session, never returned here.
func (o *Orchestrator) StartSession(ctx context.Context, id string) error {
	e, err := o.registry.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.session.Phase != PhaseCreated || e.done != nil {
		phase := e.session.Phase
		e.mu.Unlock()
		return NewInvalidStateError(id, "start", phase)
	}
	e.session.Phase = PhaseStarted

	// The task outlives the caller's request but keeps its values.
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.done = make(chan struct{})
	snapshot := e.session.Clone()
	e.mu.Unlock()

	o.opts.Metrics.RecordSessionStarted(snapshot.FlagName)
	o.persist(ctx, e)

	o.wg.Add(1)
	go o.run(taskCtx, e, snapshot)

	return nil
}

// run drives one session through the stage table.
func (o *Orchestrator) run(ctx context.Context, e *entry, s *Session) {
	defer o.wg.Done()
	defer close(e.done)
	defer e.cancel()
	defer o.opts.Metrics.RecordSessionEnded()

	ctx = logging.WithSessionID(ctx, s.ID)
	ctx = logging.WithFlag(ctx, s.FlagName)
	ctx, span := o.tracer.Start(ctx, "diagnostics.session",
		trace.WithAttributes(tracing.SessionAttributes(s.ID, s.FlagName, s.Name)...),
	)
	defer span.End()

	logger := logging.FromContext(ctx, o.logger)
	logger.Info("session started")

	phase := PhaseStarted
	for {
		st, ok := next(phase)
		if !ok {
			o.abort(ctx, e, span, "sequence", fmt.Errorf("no stage for phase %s", phase))
			return
		}
		span.AddEvent(string(phase))

		if st.Annotate != markNone {
			if err := o.mark(ctx, e, st.Annotate); err != nil {
				if phase.Terminal() {
					// The session already completed; only the marker is lost.
					logger.Error("completion annotation failed", "error", err)
				} else {
					o.abort(ctx, e, span, "annotate", err)
					return
				}
			}
		}

		if st.Next == "" {
			break
		}

		if st.Work != workNone {
			if err := o.perform(ctx, e, st.Work); err != nil {
				o.abort(ctx, e, span, "wait", err)
				return
			}
		}

		if st.Exit != effectNone {
			if err := o.apply(ctx, e, st.Exit); err != nil {
				o.abort(ctx, e, span, exitStep(st.Exit), err)
				return
			}
		}

		if !e.transition(phase, st.Next, time.Now()) {
			// Stopped or failed while this step ran. A stop that raced an
			// in-flight enable did not know to turn the flag off.
			if st.Exit == effectEnableFlag {
				o.disableBestEffort(ctx, e, "enable raced stop")
			}
			logger.Info("session task exiting", "phase", e.phase())
			return
		}
		logger.Debug("phase transition", "from", phase, "to", st.Next)
		phase = st.Next
	}

	final := e.snapshot()
	tracing.SetStatus(span, nil)
	o.opts.Metrics.RecordSessionFinished(final.FlagName, string(PhaseCompleted), final.EndTime.Sub(final.StartTime))
	o.persist(ctx, e)

	logger.Info("session completed",
		"duration", final.EndTime.Sub(final.StartTime),
		"annotation_count", len(final.AnnotationIDs),
	)
}

func exitStep(ef effect) string {
	switch ef {
	case effectEnableFlag:
		return "enable flag"
	case effectDisableFlag:
		return "disable flag"
	}
	return "exit"
}

// abort fails the session unless a stop was requested, in which case the
// task exits quietly.
func (o *Orchestrator) abort(ctx context.Context, e *entry, span trace.Span, step string, err error) {
	logger := logging.FromContext(ctx, o.logger)

	if e.stopped() {
		logger.Info("session task interrupted by stop", "step", step)
		return
	}

	if ctx.Err() != nil {
		err = fmt.Errorf("orchestrator shut down: %w", err)
	}
	failure := NewOrchestrationError(e.snapshot().ID, step, err)

	e.mu.Lock()
	if e.session.Phase.Terminal() {
		e.mu.Unlock()
		return
	}
	prev := e.session.Phase
	now := time.Now()
	e.session.Phase = PhaseFailed
	e.session.EndTime = &now
	e.session.Error = failure.Error()
	e.err = failure
	snapshot := e.session.Clone()
	e.mu.Unlock()

	tracing.SetError(span, failure)
	o.opts.Metrics.RecordSessionFinished(snapshot.FlagName, string(PhaseFailed), now.Sub(snapshot.StartTime))

	logger.Error("session failed",
		"phase", prev,
		"step", step,
		"error", failure,
	)

	if o.opts.DisableFlagOnFailure && prev.flagMayBeOn() {
		o.disableBestEffort(ctx, e, "session failed")
	}

	o.persist(ctx, e)
}

// call runs fn under the per-call timeout. A deadline hit by the call
// itself, rather than by ctx, becomes a timeout error.
func (o *Orchestrator) call(ctx context.Context, sessionID, operation string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return NewTimeoutError(sessionID, operation, err)
	}
	return err
}

// annotate records one annotation for the session and appends its id.
func (o *Orchestrator) annotate(ctx context.Context, e *entry, key, kind string, fill func(*annotations.Record) error) (string, error) {
	s := e.snapshot()

	rec := &annotations.Record{
		Key:        key,
		SignalType: annotations.SignalAll,
		CreatedBy:  o.opts.AnnotationCreator,
		SessionID:  s.ID,
	}
	if fill != nil {
		if err := fill(rec); err != nil {
			return "", err
		}
	}

	var id string
	err := o.call(ctx, s.ID, "annotate "+key, func(ctx context.Context) error {
		var err error
		id, err = o.opts.Annotations.Annotate(ctx, rec)
		return err
	})
	o.opts.Metrics.RecordAnnotation(kind, err)
	if err != nil {
		return "", err
	}

	e.appendAnnotation(id)
	return id, nil
}

// mark records the phase-boundary annotation m.
func (o *Orchestrator) mark(ctx context.Context, e *entry, m marker) error {
	s := e.snapshot()

	var err error
	switch m {
	case markSessionStarted:
		_, err = o.annotate(ctx, e, KeySessionStarted, "session_started", func(r *annotations.Record) error {
			return r.SetJSON(map[string]any{
				"session_name":        s.Name,
				"flag_name":           s.FlagName,
				"capture_interval_ms": s.CaptureInterval.Milliseconds(),
				"warmup_delay_ms":     s.WarmupDelay.Milliseconds(),
				"test_duration_ms":    s.TestDuration.Milliseconds(),
				"metadata":            s.Metadata,
			})
		})
	case markFlagEnabled:
		_, err = o.annotate(ctx, e, FlagEnabledKey(s.FlagName), "flag_enabled", func(r *annotations.Record) error {
			r.SetBool(true)
			return nil
		})
	case markFlagDisabled:
		_, err = o.annotate(ctx, e, FlagDisabledKey(s.FlagName), "flag_disabled", func(r *annotations.Record) error {
			r.SetBool(false)
			return nil
		})
	case markSessionCompleted:
		end := time.Now()
		if s.EndTime != nil {
			end = *s.EndTime
		}
		_, err = o.annotate(ctx, e, KeySessionCompleted, "session_completed", func(r *annotations.Record) error {
			r.TimeRange = annotations.TimeRange{Start: s.StartTime, End: end}
			return r.SetJSON(map[string]any{
				"duration_ms":      end.Sub(s.StartTime).Milliseconds(),
				"annotation_count": len(s.AnnotationIDs),
			})
		})
	}
	return err
}

// perform executes a suspension. Every wait returns early on cancellation.
func (o *Orchestrator) perform(ctx context.Context, e *entry, w work) error {
	s := e.snapshot()

	switch w {
	case workWarmup:
		return sleep(ctx, s.WarmupDelay)

	case workCapture:
		loopCtx, stopLoop := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.runCheckpoints(loopCtx, e, s.CaptureInterval, s.TestDuration)
		}()

		err := sleep(ctx, s.TestDuration)

		// Joined before the flag is disabled so no checkpoint follows it.
		stopLoop()
		wg.Wait()
		return err

	case workAnalyze:
		return sleep(ctx, o.opts.AnalysisDelay)
	}
	return nil
}

// apply executes an exit side effect against the flag controller.
func (o *Orchestrator) apply(ctx context.Context, e *entry, ef effect) error {
	s := e.snapshot()

	var err error
	switch ef {
	case effectEnableFlag:
		err = o.call(ctx, s.ID, "enable flag", func(ctx context.Context) error {
			return o.opts.Flags.Enable(ctx, s.FlagName)
		})
		o.opts.Metrics.RecordFlagOperation("enable", err)
	case effectDisableFlag:
		err = o.call(ctx, s.ID, "disable flag", func(ctx context.Context) error {
			return o.opts.Flags.Disable(ctx, s.FlagName)
		})
		o.opts.Metrics.RecordFlagOperation("disable", err)
	}
	return err
}

// disableBestEffort turns the session's flag off, logging any failure.
// It runs even when ctx is already cancelled.
func (o *Orchestrator) disableBestEffort(ctx context.Context, e *entry, reason string) {
	s := e.snapshot()
	ctx = context.WithoutCancel(ctx)

	err := o.call(ctx, s.ID, "disable flag", func(ctx context.Context) error {
		return o.opts.Flags.Disable(ctx, s.FlagName)
	})
	o.opts.Metrics.RecordFlagOperation("disable", err)

	logger := logging.FromContext(ctx, o.logger)
	if err != nil {
		logger.Warn("best-effort flag disable failed", "reason", reason, "error", err)
		return
	}
	logger.Info("flag disabled", "reason", reason)
}

// StopSession ends a session early. A session whose flag is on gets a
// best-effort disable; errors from it are logged, not returned. The session
// is forced to completed and its background task is cancelled. Stopping a
// session that already finished is a no-op.
func (o *Orchestrator) StopSession(ctx context.Context, id string) error {
	e, err := o.registry.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.session.Phase.Terminal() {
		e.mu.Unlock()
		return nil
	}
	prev := e.session.Phase
	now := time.Now()
	e.stopRequested = true
	e.session.Phase = PhaseCompleted
	e.session.EndTime = &now
	cancel := e.cancel
	snapshot := e.session.Clone()
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx = logging.WithSessionID(ctx, id)
	logger := logging.FromContext(ctx, o.logger)

	if prev.flagMayBeOn() {
		err := o.call(ctx, id, "disable flag", func(ctx context.Context) error {
			return o.opts.Flags.Disable(ctx, snapshot.FlagName)
		})
		o.opts.Metrics.RecordFlagOperation("disable", err)
		if err != nil {
			logger.Warn("flag disable during stop failed", "flag", snapshot.FlagName, "error", err)
		}
	}

	o.opts.Metrics.RecordSessionFinished(snapshot.FlagName, "stopped", now.Sub(snapshot.StartTime))
	o.persist(ctx, e)

	logger.Info("session stopped", "phase", prev)
	return nil
}

// GetSession returns a snapshot of the session.
func (o *Orchestrator) GetSession(id string) (*Session, error) {
	return o.registry.Get(id)
}

// ListSessions returns snapshots of every session ordered by start time.
func (o *Orchestrator) ListSessions() []*Session {
	return o.registry.List()
}

// GetSessionAnnotations returns annotations for the session. By default it
// selects on the creator label, which matches every session's annotations;
// Options.SessionScopedAnnotations restricts results to this session.
func (o *Orchestrator) GetSessionAnnotations(ctx context.Context, id string) ([]*annotations.Record, error) {
	if _, err := o.registry.get(id); err != nil {
		return nil, err
	}

	filter := &annotations.Filter{CreatedBy: o.opts.AnnotationCreator}
	if o.opts.SessionScopedAnnotations {
		filter = &annotations.Filter{SessionID: id}
	}

	return o.opts.Annotations.Query(ctx, filter)
}

// Wait blocks until the session's background task has exited and returns
// the failure it recorded, if any. It returns immediately for sessions that
// were never started.
func (o *Orchestrator) Wait(ctx context.Context, id string) error {
	e, err := o.registry.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every running session and waits for their tasks.
// Interrupted sessions are marked failed.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	for _, e := range o.registry.all() {
		e.mu.Lock()
		cancel := e.cancel
		e.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("orchestrator shut down", "sessions", o.registry.Len())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// persist writes the session's current descriptor to the object store, if
// configured. Writes for one session are serialized and each stores the
// state at write time, so the stored phase never moves backwards. Failures
// are logged.
func (o *Orchestrator) persist(ctx context.Context, e *entry) {
	if o.opts.Store == nil {
		return
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	s := e.snapshot()

	data, err := json.Marshal(objectstore.SessionDescriptor{
		SessionID: s.ID,
		Name:      s.Name,
		FlagName:  s.FlagName,
		Phase:     string(s.Phase),
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	})
	if err != nil {
		o.logger.Error("failed to encode session descriptor", "session_id", s.ID, "error", err)
		return
	}

	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CallTimeout)
	defer cancel()

	key := objectstore.SessionMetadataKey(s.ID)
	if _, err := o.opts.Store.Put(putCtx, key, data); err != nil {
		o.logger.Warn("failed to persist session descriptor", "session_id", s.ID, "key", key, "error", err)
	}
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
