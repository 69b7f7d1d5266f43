package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/chaoslab/pkg/annotations"
	"mercator-hq/chaoslab/pkg/cli"
	"mercator-hq/chaoslab/pkg/diagnostics"
	"mercator-hq/chaoslab/pkg/objectstore"
	"mercator-hq/chaoslab/pkg/telemetry/metrics"
	"mercator-hq/chaoslab/pkg/telemetry/tracing"
)

// progressInterval is how often the session progress line is redrawn.
const progressInterval = 200 * time.Millisecond

var sessionFlags struct {
	flag     string
	name     string
	interval time.Duration
	warmup   time.Duration
	duration time.Duration
	metadata map[string]string
	quiet    bool
	listCap  int
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run and inspect diagnostic sessions",
}

var sessionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one diagnostic session in the foreground",
	Long: `Run one diagnostic session: enable the flag, capture for the test
duration with periodic checkpoints, disable the flag and annotate each phase.

Ctrl+C stops the session early; a flag that is on is turned off.

Examples:
  chaoslab session run --flag paymentServiceFailure
  chaoslab session run --flag cacheMiss --warmup 0s --duration 30s --interval 5s
  chaoslab session run --flag paymentServiceFailure --meta ticket=INC-1042 -o json`,
	RunE: runSession,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions persisted in the object store",
	RunE:  listSessions,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionRunCmd, sessionListCmd)

	f := sessionRunCmd.Flags()
	f.StringVar(&sessionFlags.flag, "flag", "", "fault-injection flag to toggle (required)")
	f.StringVar(&sessionFlags.name, "name", "", "session name (default: <flag>-<id prefix>)")
	f.DurationVar(&sessionFlags.interval, "interval", 0, "checkpoint interval (default 30s)")
	f.DurationVar(&sessionFlags.warmup, "warmup", -1, "delay between enabling the flag and capturing (default 5s)")
	f.DurationVar(&sessionFlags.duration, "duration", 0, "capture duration (default 60s)")
	f.StringToStringVar(&sessionFlags.metadata, "meta", nil, "session metadata as key=value pairs")
	f.BoolVarP(&sessionFlags.quiet, "quiet", "q", false, "do not draw the progress line")
	_ = sessionRunCmd.MarkFlagRequired("flag")

	sessionListCmd.Flags().IntVar(&sessionFlags.listCap, "limit", 1000, "maximum number of objects listed under sessions/")
}

// sessionConfigFromFlags maps command flags onto a session config. Unset
// flags leave the orchestrator defaults in place.
func sessionConfigFromFlags() diagnostics.SessionConfig {
	sc := diagnostics.SessionConfig{
		FlagName: sessionFlags.flag,
		Name:     sessionFlags.name,
	}
	if sessionFlags.interval > 0 {
		sc.CaptureIntervalMs = diagnostics.Ms(sessionFlags.interval.Milliseconds())
	}
	if sessionFlags.warmup >= 0 {
		sc.WarmupDelayMs = diagnostics.Ms(sessionFlags.warmup.Milliseconds())
	}
	if sessionFlags.duration > 0 {
		sc.TestDurationMs = diagnostics.Ms(sessionFlags.duration.Milliseconds())
	}
	if len(sessionFlags.metadata) > 0 {
		sc.Metadata = make(map[string]any, len(sessionFlags.metadata))
		for k, v := range sessionFlags.metadata {
			sc.Metadata[k] = v
		}
	}
	return sc
}

func runSession(cmd *cobra.Command, args []string) error {
	b, err := openBackends(cfg)
	if err != nil {
		return cli.NewCommandError("session run", err)
	}
	defer b.Close()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewCommandError("session run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer shutdownTracer(tracer)

	opts := diagnostics.Options{
		Flags:                    b.flags,
		Annotations:              b.recorder,
		Metrics:                  metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		Tracer:                   tracer.Tracer(),
		AnalysisDelay:            cfg.Diagnostics.AnalysisDelay,
		CallTimeout:              cfg.Diagnostics.CallTimeout,
		AnnotationCreator:        cfg.Diagnostics.AnnotationCreator,
		DisableFlagOnFailure:     cfg.Diagnostics.DisableFlagOnFailure,
		SessionScopedAnnotations: cfg.Diagnostics.SessionScopedAnnotations,
	}
	if cfg.Diagnostics.PersistSessions {
		opts.Store = b.store
	}

	orch, err := diagnostics.New(opts)
	if err != nil {
		return cli.NewCommandError("session run", err)
	}

	session, err := orch.CreateSession(sessionConfigFromFlags())
	if err != nil {
		return cli.NewCommandError("session run", err)
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	if err := orch.StartSession(ctx, session.ID); err != nil {
		return cli.NewCommandError("session run", err)
	}

	var progress cli.ProgressReporter
	if !sessionFlags.quiet {
		progress = cli.NewProgressReporter(os.Stderr)
	}
	if err := superviseSession(ctx, orch, session, progress); err != nil {
		return cli.NewCommandError("session run", err)
	}

	final, err := orch.GetSession(session.ID)
	if err != nil {
		return cli.NewCommandError("session run", err)
	}
	records, err := orch.GetSessionAnnotations(context.Background(), session.ID)
	if err != nil {
		return cli.NewCommandError("session run", err)
	}

	if err := render(cmd, newSessionReport(final, records)); err != nil {
		return err
	}
	if final.Phase == diagnostics.PhaseFailed {
		return cli.NewCommandError("session run", errors.New(final.Error))
	}
	return nil
}

// superviseSession draws progress until the session task exits. A
// cancelled ctx stops the session.
func superviseSession(ctx context.Context, orch *diagnostics.Orchestrator, s *diagnostics.Session, progress cli.ProgressReporter) error {
	done := make(chan error, 1)
	go func() {
		done <- orch.Wait(context.Background(), s.ID)
	}()

	expected := s.WarmupDelay + s.TestDuration
	if progress != nil {
		progress.Start(expected.Milliseconds())
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	interrupt := ctx.Done()
	for {
		select {
		case <-interrupt:
			interrupt = nil
			if err := orch.StopSession(context.Background(), s.ID); err != nil {
				return err
			}

		case err := <-done:
			if progress != nil {
				if err != nil {
					progress.Error(err)
				} else {
					progress.Finish()
				}
			}
			// The failure is reported through the session's phase.
			return nil

		case <-ticker.C:
			if progress == nil {
				continue
			}
			current, err := orch.GetSession(s.ID)
			if err != nil {
				return err
			}
			progress.Update(time.Since(current.StartTime).Milliseconds(), string(current.Phase))
		}
	}
}

// sessionReport is the printed outcome of a session run.
type sessionReport struct {
	Session     *diagnostics.Session  `json:"session" yaml:"session"`
	Annotations []*annotations.Record `json:"annotations" yaml:"annotations"`
}

// newSessionReport pairs the session with the annotations the orchestrator
// returns for it. Which records those are depends on
// diagnostics.session_scoped_annotations.
func newSessionReport(s *diagnostics.Session, records []*annotations.Record) *sessionReport {
	if records == nil {
		records = []*annotations.Record{}
	}
	return &sessionReport{Session: s, Annotations: records}
}

func (r *sessionReport) Headers() []string {
	return []string{"TIME", "KEY", "VALUE"}
}

func (r *sessionReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Annotations)+1)
	for _, a := range r.Annotations {
		rows = append(rows, []string{a.CreatedAt.Format(time.RFC3339Nano), a.Key, a.Value})
	}

	end := "-"
	if r.Session.EndTime != nil {
		end = r.Session.EndTime.Sub(r.Session.StartTime).Round(time.Millisecond).String()
	}
	summary := fmt.Sprintf("session %s phase=%s duration=%s annotations=%d",
		r.Session.ID, r.Session.Phase, end, len(r.Session.AnnotationIDs))
	if r.Session.Error != "" {
		summary += " error=" + strconv.Quote(r.Session.Error)
	}
	return append(rows, []string{"", summary, ""})
}

// sessionList is the printed list of persisted session descriptors.
type sessionList struct {
	Sessions  []objectstore.SessionDescriptor `json:"sessions" yaml:"sessions"`
	Truncated bool                            `json:"truncated" yaml:"truncated"`
}

func (l *sessionList) Headers() []string {
	return []string{"ID", "NAME", "FLAG", "PHASE", "STARTED", "ENDED"}
}

func (l *sessionList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Sessions))
	for _, d := range l.Sessions {
		ended := "-"
		if d.EndTime != nil {
			ended = d.EndTime.Format(time.RFC3339)
		}
		rows = append(rows, []string{d.SessionID, d.Name, d.FlagName, d.Phase, d.StartTime.Format(time.RFC3339), ended})
	}
	return rows
}

func listSessions(cmd *cobra.Command, args []string) error {
	store, err := openStore(&cfg.ObjectStore)
	if err != nil {
		return cli.NewCommandError("session list", err)
	}
	defer store.Close()

	list, err := loadSessionList(cmd.Context(), store, sessionFlags.listCap)
	if err != nil {
		return cli.NewCommandError("session list", err)
	}
	return render(cmd, list)
}

// loadSessionList reads every descriptor found in one bounded listing of
// sessions/. Unreadable descriptors are skipped.
func loadSessionList(ctx context.Context, store objectstore.Store, limit int) (*sessionList, error) {
	objects, truncated, err := objectstore.ListBounded(ctx, store, objectstore.SessionsPrefix, limit)
	if err != nil {
		return nil, err
	}

	list := &sessionList{Sessions: []objectstore.SessionDescriptor{}, Truncated: truncated}
	for _, obj := range objects {
		if _, ok := objectstore.SessionIDFromMetadataKey(obj.Key); !ok {
			continue
		}
		data, _, err := store.Get(ctx, obj.Key)
		if err != nil {
			continue
		}
		var desc objectstore.SessionDescriptor
		if err := json.Unmarshal(data, &desc); err != nil {
			continue
		}
		list.Sessions = append(list.Sessions, desc)
	}

	sort.Slice(list.Sessions, func(i, j int) bool {
		return list.Sessions[i].StartTime.Before(list.Sessions[j].StartTime)
	})
	return list, nil
}
