package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/chaoslab/pkg/annotations"
	"mercator-hq/chaoslab/pkg/annotations/recorder"
	"mercator-hq/chaoslab/pkg/annotations/storage"
	"mercator-hq/chaoslab/pkg/flags"
	"mercator-hq/chaoslab/pkg/objectstore"
)

const testFlag = "paymentServiceFailure"

type harness struct {
	orch     *Orchestrator
	flags    *flags.MemoryController
	storage  *storage.MemoryStorage
	recorder *recorder.Recorder
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	h := &harness{
		flags:   flags.NewMemoryController(testFlag, "cacheMiss"),
		storage: storage.NewMemoryStorage(),
	}
	h.recorder = recorder.New(h.storage, nil)

	opts.Flags = h.flags
	opts.Annotations = h.recorder
	if opts.AnalysisDelay == 0 {
		opts.AnalysisDelay = 10 * time.Millisecond
	}

	orch, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.orch = orch

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})
	return h
}

func quickConfig(flag string) SessionConfig {
	return SessionConfig{
		FlagName:          flag,
		CaptureIntervalMs: Ms(100),
		WarmupDelayMs:     Ms(0),
		TestDurationMs:    Ms(300),
	}
}

func (h *harness) startAndWait(t *testing.T, cfg SessionConfig) (*Session, error) {
	t.Helper()

	s, err := h.orch.CreateSession(cfg)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := h.orch.StartSession(context.Background(), s.ID); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	waitErr := h.orch.Wait(ctx, s.ID)

	final, err := h.orch.GetSession(s.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	return final, waitErr
}

func waitForPhase(t *testing.T, o *Orchestrator, id string, want Phase) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, err := o.GetSession(id)
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if s.Phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached phase %s", id, want)
}

func annotationKeys(t *testing.T, h *harness, sessionID string) []string {
	t.Helper()

	records, err := h.recorder.Query(context.Background(), &annotations.Filter{SessionID: sessionID})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}

func TestNew(t *testing.T) {
	ann := recorder.New(storage.NewMemoryStorage(), nil)
	ctl := flags.NewMemoryController()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{Flags: ctl, Annotations: ann}, false},
		{"missing flags", Options{Annotations: ann}, true},
		{"missing annotations", Options{Flags: ctl}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := New(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if o.opts.CallTimeout != DefaultCallTimeout {
					t.Errorf("CallTimeout = %v, want %v", o.opts.CallTimeout, DefaultCallTimeout)
				}
				if o.opts.AnnotationCreator != DefaultAnnotationCreator {
					t.Errorf("AnnotationCreator = %q, want %q", o.opts.AnnotationCreator, DefaultAnnotationCreator)
				}
			}
		})
	}
}

func TestCreateSession(t *testing.T) {
	h := newHarness(t, Options{})

	tests := []struct {
		name         string
		cfg          SessionConfig
		wantErr      bool
		wantName     string
		wantWarmup   time.Duration
		wantInterval time.Duration
		wantDuration time.Duration
	}{
		{
			name:         "defaults",
			cfg:          SessionConfig{FlagName: testFlag},
			wantWarmup:   5 * time.Second,
			wantInterval: 30 * time.Second,
			wantDuration: 60 * time.Second,
		},
		{
			name:         "explicit values",
			cfg:          SessionConfig{FlagName: testFlag, Name: "checkout-latency", CaptureIntervalMs: Ms(250), WarmupDelayMs: Ms(0), TestDurationMs: Ms(1000)},
			wantName:     "checkout-latency",
			wantWarmup:   0,
			wantInterval: 250 * time.Millisecond,
			wantDuration: time.Second,
		},
		{
			name:    "missing flag name",
			cfg:     SessionConfig{Name: "orphan"},
			wantErr: true,
		},
		{
			name:    "zero capture interval",
			cfg:     SessionConfig{FlagName: testFlag, CaptureIntervalMs: Ms(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := h.orch.CreateSession(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateSession() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if s.Phase != PhaseCreated {
				t.Errorf("Phase = %s, want %s", s.Phase, PhaseCreated)
			}
			if tt.wantName != "" && s.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", s.Name, tt.wantName)
			}
			if tt.wantName == "" && !strings.HasPrefix(s.Name, testFlag+"-") {
				t.Errorf("Name = %q, want prefix %q", s.Name, testFlag+"-")
			}
			if s.WarmupDelay != tt.wantWarmup {
				t.Errorf("WarmupDelay = %v, want %v", s.WarmupDelay, tt.wantWarmup)
			}
			if s.CaptureInterval != tt.wantInterval {
				t.Errorf("CaptureInterval = %v, want %v", s.CaptureInterval, tt.wantInterval)
			}
			if s.TestDuration != tt.wantDuration {
				t.Errorf("TestDuration = %v, want %v", s.TestDuration, tt.wantDuration)
			}
			if len(s.AnnotationIDs) != 0 {
				t.Errorf("AnnotationIDs = %v, want empty", s.AnnotationIDs)
			}
			if s.EndTime != nil {
				t.Error("EndTime set on a created session")
			}
		})
	}
}

func TestCreateSession_UniqueIDsAndMetadataCopy(t *testing.T) {
	h := newHarness(t, Options{})

	metadata := map[string]any{"ticket": "INC-1042"}
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := h.orch.CreateSession(SessionConfig{FlagName: testFlag, Metadata: metadata})
		if err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
		if seen[s.ID] {
			t.Fatalf("duplicate session id %s", s.ID)
		}
		seen[s.ID] = true
	}

	metadata["ticket"] = "changed"
	for _, s := range h.orch.ListSessions() {
		if s.Metadata["ticket"] != "INC-1042" {
			t.Fatalf("session metadata follows caller's map: %v", s.Metadata)
		}
	}
	if len(h.orch.ListSessions()) != 50 {
		t.Errorf("ListSessions() = %d sessions, want 50", len(h.orch.ListSessions()))
	}
}

func TestStartSession_Errors(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	if err := h.orch.StartSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("StartSession(missing) error = %v, want ErrSessionNotFound", err)
	}

	s, err := h.orch.CreateSession(SessionConfig{FlagName: testFlag, TestDurationMs: Ms(5000)})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.orch.StartSession(ctx, s.ID); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	err = h.orch.StartSession(ctx, s.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second StartSession() error = %v, want ErrInvalidState", err)
	}
	var sessErr *SessionError
	if !errors.As(err, &sessErr) || sessErr.SessionID != s.ID {
		t.Errorf("error = %#v, want *SessionError for %s", err, s.ID)
	}

	got, _ := h.orch.GetSession(s.ID)
	if got.Phase == PhaseCreated || got.Phase == PhaseFailed {
		t.Errorf("Phase = %s after rejected start", got.Phase)
	}
}

func TestSession_PaymentServiceFailure(t *testing.T) {
	h := newHarness(t, Options{})

	final, err := h.startAndWait(t, quickConfig(testFlag))
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if final.Phase != PhaseCompleted {
		t.Fatalf("Phase = %s, want completed (error %q)", final.Phase, final.Error)
	}
	if final.EndTime == nil || final.EndTime.Before(final.StartTime) {
		t.Errorf("EndTime = %v, want after StartTime %v", final.EndTime, final.StartTime)
	}
	if final.Error != "" {
		t.Errorf("Error = %q, want empty", final.Error)
	}

	keys := annotationKeys(t, h, final.ID)
	checkpoints := 0
	for _, k := range keys {
		if k == KeyCaptureCheckpoint {
			checkpoints++
		}
	}
	// Ticks at 100ms and 200ms record; the 300ms tick reaches the test
	// duration and ends the loop.
	if checkpoints != 2 {
		t.Errorf("checkpoints = %d, want 2", checkpoints)
	}
	if len(keys) != 4+checkpoints {
		t.Fatalf("annotations = %v, want %d", keys, 4+checkpoints)
	}
	if len(final.AnnotationIDs) != 6 {
		t.Errorf("AnnotationIDs = %d, want 6", len(final.AnnotationIDs))
	}

	want := []string{KeySessionStarted, FlagEnabledKey(testFlag)}
	for i := 0; i < checkpoints; i++ {
		want = append(want, KeyCaptureCheckpoint)
	}
	want = append(want, FlagDisabledKey(testFlag), KeySessionCompleted)
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("annotation[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	if len(final.AnnotationIDs) != len(keys) {
		t.Errorf("AnnotationIDs = %d, want %d", len(final.AnnotationIDs), len(keys))
	}

	on, err := h.flags.GetValue(context.Background(), testFlag)
	if err != nil {
		t.Fatal(err)
	}
	if on {
		t.Error("flag left on after a completed session")
	}
	if got := h.flags.CallCount(flags.OpEnable); got != 1 {
		t.Errorf("enable calls = %d, want 1", got)
	}
	if got := h.flags.CallCount(flags.OpDisable); got != 1 {
		t.Errorf("disable calls = %d, want 1", got)
	}
}

func TestSession_AnnotationValues(t *testing.T) {
	h := newHarness(t, Options{})

	cfg := quickConfig(testFlag)
	cfg.Metadata = map[string]any{"ticket": "INC-7"}
	final, err := h.startAndWait(t, cfg)
	if err != nil {
		t.Fatal(err)
	}

	records, err := h.recorder.Query(context.Background(), &annotations.Filter{SessionID: final.ID})
	if err != nil {
		t.Fatal(err)
	}
	byKey := make(map[string]*annotations.Record)
	for _, r := range records {
		byKey[r.Key] = r
	}

	started := byKey[KeySessionStarted]
	if started == nil || started.ValueType != annotations.ValueJSON {
		t.Fatalf("started annotation = %+v", started)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(started.Value), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["flag_name"] != testFlag || payload["test_duration_ms"] != float64(300) {
		t.Errorf("started payload = %v", payload)
	}

	if r := byKey[FlagEnabledKey(testFlag)]; r == nil || r.Value != "true" || r.ValueType != annotations.ValueBool {
		t.Errorf("enabled annotation = %+v", r)
	}
	if r := byKey[FlagDisabledKey(testFlag)]; r == nil || r.Value != "false" {
		t.Errorf("disabled annotation = %+v", r)
	}

	completed := byKey[KeySessionCompleted]
	if completed == nil {
		t.Fatal("missing completed annotation")
	}
	if !completed.TimeRange.Start.Equal(final.StartTime) || !completed.TimeRange.End.Equal(*final.EndTime) {
		t.Errorf("completed range = %+v, want [%v, %v]", completed.TimeRange, final.StartTime, final.EndTime)
	}
	for _, r := range records {
		if r.CreatedBy != DefaultAnnotationCreator {
			t.Errorf("%s CreatedBy = %q", r.Key, r.CreatedBy)
		}
		if r.SignalType != annotations.SignalAll {
			t.Errorf("%s SignalType = %q", r.Key, r.SignalType)
		}
	}
}

func TestStopSession_DuringCapture(t *testing.T) {
	h := newHarness(t, Options{})
	h.flags.SetFailure(flags.OpDisable, flags.NewConnectionError(testFlag, errors.New("control plane down")))

	s, err := h.orch.CreateSession(SessionConfig{
		FlagName:          testFlag,
		CaptureIntervalMs: Ms(50),
		WarmupDelayMs:     Ms(0),
		TestDurationMs:    Ms(60000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.orch.StartSession(context.Background(), s.ID); err != nil {
		t.Fatal(err)
	}
	waitForPhase(t, h.orch, s.ID, PhaseCapturing)

	start := time.Now()
	if err := h.orch.StopSession(context.Background(), s.ID); err != nil {
		t.Fatalf("StopSession() error = %v, want nil despite disable failure", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.orch.Wait(ctx, s.ID); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("task took %v to exit after stop", elapsed)
	}

	final, _ := h.orch.GetSession(s.ID)
	if final.Phase != PhaseCompleted {
		t.Errorf("Phase = %s, want completed", final.Phase)
	}
	if final.EndTime == nil {
		t.Error("EndTime not set")
	}
	if got := h.flags.CallCount(flags.OpDisable); got != 1 {
		t.Errorf("disable calls = %d, want 1", got)
	}

	countAfterStop := len(annotationKeys(t, h, s.ID))
	time.Sleep(150 * time.Millisecond)
	keys := annotationKeys(t, h, s.ID)
	if len(keys) != countAfterStop {
		t.Errorf("annotations kept arriving after stop: %v", keys)
	}
	for _, k := range keys {
		if k == FlagDisabledKey(testFlag) || k == KeySessionCompleted {
			t.Errorf("unexpected %s annotation for a stopped session", k)
		}
	}
}

func TestStopSession_Phases(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		h := newHarness(t, Options{})
		if err := h.orch.StopSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("created session", func(t *testing.T) {
		h := newHarness(t, Options{})
		s, _ := h.orch.CreateSession(SessionConfig{FlagName: testFlag})
		if err := h.orch.StopSession(ctx, s.ID); err != nil {
			t.Fatal(err)
		}
		got, _ := h.orch.GetSession(s.ID)
		if got.Phase != PhaseCompleted {
			t.Errorf("Phase = %s, want completed", got.Phase)
		}
		if h.flags.CallCount(flags.OpDisable) != 0 {
			t.Error("disable called for a session whose flag was never on")
		}
		if err := h.orch.StartSession(ctx, s.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("StartSession() after stop error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("terminal session is a no-op", func(t *testing.T) {
		h := newHarness(t, Options{})
		final, err := h.startAndWait(t, quickConfig(testFlag))
		if err != nil {
			t.Fatal(err)
		}
		before := h.flags.CallCount(flags.OpDisable)

		if err := h.orch.StopSession(ctx, final.ID); err != nil {
			t.Fatalf("StopSession() error = %v", err)
		}
		got, _ := h.orch.GetSession(final.ID)
		if !got.EndTime.Equal(*final.EndTime) {
			t.Errorf("EndTime changed from %v to %v", final.EndTime, got.EndTime)
		}
		if h.flags.CallCount(flags.OpDisable) != before {
			t.Error("disable called when stopping a finished session")
		}
	})
}

func TestSession_EnableFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.flags.SetFailure(flags.OpEnable, flags.NewConnectionError(testFlag, errors.New("refused")))

	final, err := h.startAndWait(t, quickConfig(testFlag))
	if !errors.Is(err, ErrOrchestrationFailure) {
		t.Fatalf("Wait() error = %v, want ErrOrchestrationFailure", err)
	}

	var flagErr *flags.Error
	if !errors.As(err, &flagErr) || flagErr.Category != flags.CategoryConnectionFailure {
		t.Errorf("error chain = %v, want flag connection failure", err)
	}

	if final.Phase != PhaseFailed {
		t.Errorf("Phase = %s, want failed", final.Phase)
	}
	if final.Error == "" || final.EndTime == nil {
		t.Errorf("failed session missing Error/EndTime: %+v", final)
	}
	if h.flags.CallCount(flags.OpDisable) != 0 {
		t.Error("disable called after enable failure")
	}

	keys := annotationKeys(t, h, final.ID)
	if len(keys) != 1 || keys[0] != KeySessionStarted {
		t.Errorf("annotations = %v, want only %s", keys, KeySessionStarted)
	}
}

func TestSession_DisableFlagOnFailure(t *testing.T) {
	tests := []struct {
		name         string
		compensate   bool
		wantDisables int
		wantFlagOn   bool
	}{
		{"flag left on by default", false, 0, true},
		{"compensation opt-in", true, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{DisableFlagOnFailure: tt.compensate})
			h.storage.SetStoreHook(func(r *annotations.Record) error {
				if r.Key == FlagEnabledKey(testFlag) {
					return errors.New("disk full")
				}
				return nil
			})

			final, err := h.startAndWait(t, quickConfig(testFlag))
			if !errors.Is(err, ErrOrchestrationFailure) {
				t.Fatalf("Wait() error = %v, want ErrOrchestrationFailure", err)
			}
			if final.Phase != PhaseFailed {
				t.Errorf("Phase = %s, want failed", final.Phase)
			}
			if got := h.flags.CallCount(flags.OpDisable); got != tt.wantDisables {
				t.Errorf("disable calls = %d, want %d", got, tt.wantDisables)
			}

			on, err := h.flags.GetValue(context.Background(), testFlag)
			if err != nil {
				t.Fatal(err)
			}
			if on != tt.wantFlagOn {
				t.Errorf("flag on = %v, want %v", on, tt.wantFlagOn)
			}
		})
	}
}

func TestSession_CallTimeout(t *testing.T) {
	h := newHarness(t, Options{CallTimeout: 50 * time.Millisecond})
	h.flags.SetDelay(flags.OpEnable, 2*time.Second)

	start := time.Now()
	final, err := h.startAndWait(t, quickConfig(testFlag))
	if !errors.Is(err, ErrOrchestrationFailure) || !errors.Is(err, ErrTimeout) {
		t.Fatalf("Wait() error = %v, want orchestration failure caused by timeout", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("session took %v, want the call timeout to cut it short", time.Since(start))
	}
	if final.Phase != PhaseFailed {
		t.Errorf("Phase = %s, want failed", final.Phase)
	}
}

func TestGetSessionAnnotations(t *testing.T) {
	tests := []struct {
		name        string
		scoped      bool
		wantOwnOnly bool
	}{
		{"creator label filter", false, false},
		{"session scoped filter", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{SessionScopedAnnotations: tt.scoped})

			first, err := h.startAndWait(t, quickConfig(testFlag))
			if err != nil {
				t.Fatal(err)
			}
			second, err := h.startAndWait(t, quickConfig("cacheMiss"))
			if err != nil {
				t.Fatal(err)
			}

			records, err := h.orch.GetSessionAnnotations(context.Background(), first.ID)
			if err != nil {
				t.Fatalf("GetSessionAnnotations() error = %v", err)
			}

			own, foreign := 0, 0
			for _, r := range records {
				switch r.SessionID {
				case first.ID:
					own++
				case second.ID:
					foreign++
				}
			}
			if own != len(first.AnnotationIDs) {
				t.Errorf("own annotations = %d, want %d", own, len(first.AnnotationIDs))
			}
			if tt.wantOwnOnly && foreign != 0 {
				t.Errorf("foreign annotations = %d, want 0", foreign)
			}
			if !tt.wantOwnOnly && foreign != len(second.AnnotationIDs) {
				t.Errorf("foreign annotations = %d, want %d", foreign, len(second.AnnotationIDs))
			}
		})
	}

	t.Run("unknown session", func(t *testing.T) {
		h := newHarness(t, Options{})
		if _, err := h.orch.GetSessionAnnotations(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("error = %v, want ErrSessionNotFound", err)
		}
	})
}

func TestShutdown_FailsRunningSessions(t *testing.T) {
	h := newHarness(t, Options{})

	s, err := h.orch.CreateSession(SessionConfig{FlagName: testFlag, WarmupDelayMs: Ms(0), TestDurationMs: Ms(60000)})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.orch.StartSession(context.Background(), s.ID); err != nil {
		t.Fatal(err)
	}
	waitForPhase(t, h.orch, s.ID, PhaseCapturing)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.orch.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	final, _ := h.orch.GetSession(s.ID)
	if final.Phase != PhaseFailed {
		t.Errorf("Phase = %s, want failed", final.Phase)
	}
	if !strings.Contains(final.Error, "orchestrator shut down") {
		t.Errorf("Error = %q, want shutdown cause", final.Error)
	}
}

func TestSession_PersistsDescriptor(t *testing.T) {
	store := objectstore.NewMemoryStore()
	h := newHarness(t, Options{Store: store})

	final, err := h.startAndWait(t, quickConfig(testFlag))
	if err != nil {
		t.Fatal(err)
	}

	data, _, err := store.Get(context.Background(), objectstore.SessionMetadataKey(final.ID))
	if err != nil {
		t.Fatalf("Get(metadata.json) error = %v", err)
	}

	var desc objectstore.SessionDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		t.Fatal(err)
	}
	if desc.SessionID != final.ID || desc.FlagName != testFlag {
		t.Errorf("descriptor = %+v", desc)
	}
	if desc.Phase != string(PhaseCompleted) || !desc.Finished() {
		t.Errorf("descriptor phase = %s finished = %v, want completed", desc.Phase, desc.Finished())
	}
	if !desc.StartTime.Equal(final.StartTime) {
		t.Errorf("StartTime = %v, want %v", desc.StartTime, final.StartTime)
	}
}

func readDescriptor(t *testing.T, store objectstore.Store, id string) objectstore.SessionDescriptor {
	t.Helper()

	data, _, err := store.Get(context.Background(), objectstore.SessionMetadataKey(id))
	if err != nil {
		t.Fatalf("Get(metadata.json) error = %v", err)
	}
	var desc objectstore.SessionDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		t.Fatal(err)
	}
	return desc
}

func TestSession_DescriptorWrittenOnStart(t *testing.T) {
	store := objectstore.NewMemoryStore()
	h := newHarness(t, Options{Store: store})

	s, _ := h.orch.CreateSession(SessionConfig{FlagName: testFlag, WarmupDelayMs: Ms(60000)})
	if err := h.orch.StartSession(context.Background(), s.ID); err != nil {
		t.Fatal(err)
	}

	desc := readDescriptor(t, store, s.ID)
	if desc.Phase != string(PhaseStarted) || desc.Finished() {
		t.Errorf("descriptor after start = %+v, want started and unfinished", desc)
	}
}

func TestSession_StopRightAfterStartPersistsCompleted(t *testing.T) {
	store := objectstore.NewMemoryStore()
	h := newHarness(t, Options{Store: store})

	for i := 0; i < 50; i++ {
		s, err := h.orch.CreateSession(quickConfig(testFlag))
		if err != nil {
			t.Fatal(err)
		}
		if err := h.orch.StartSession(context.Background(), s.ID); err != nil {
			t.Fatal(err)
		}
		if err := h.orch.StopSession(context.Background(), s.ID); err != nil {
			t.Fatal(err)
		}
		if err := h.orch.Wait(context.Background(), s.ID); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}

		desc := readDescriptor(t, store, s.ID)
		if desc.Phase != string(PhaseCompleted) || !desc.Finished() {
			t.Fatalf("run %d: descriptor = phase %s end_time %v, want completed with end time", i, desc.Phase, desc.EndTime)
		}
	}
}

func TestWait(t *testing.T) {
	h := newHarness(t, Options{})

	s, _ := h.orch.CreateSession(SessionConfig{FlagName: testFlag})
	if err := h.orch.Wait(context.Background(), s.ID); err != nil {
		t.Errorf("Wait(unstarted) error = %v", err)
	}
	if err := h.orch.Wait(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Wait(missing) error = %v", err)
	}

	long, _ := h.orch.CreateSession(SessionConfig{FlagName: testFlag, WarmupDelayMs: Ms(0), TestDurationMs: Ms(60000)})
	if err := h.orch.StartSession(context.Background(), long.ID); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.orch.Wait(ctx, long.ID); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}
