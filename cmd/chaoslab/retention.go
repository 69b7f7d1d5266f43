package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/chaoslab/pkg/cli"
	"mercator-hq/chaoslab/pkg/objectstore"
	"mercator-hq/chaoslab/pkg/retention"
	"mercator-hq/chaoslab/pkg/telemetry/metrics"
)

var retentionFlags struct {
	days     int
	sessions bool
}

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Run retention cleanups and inspect storage usage",
}

var retentionCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired continuous data, and optionally expired sessions",
	Long: `Delete continuous/{YYYY-MM-DD}/ objects whose partition date is older than
the retention window. With --sessions, every session whose age exceeds the
maximum session retention is deleted as well.

Examples:
  chaoslab retention cleanup
  chaoslab retention cleanup --days 7 --sessions -o json`,
	RunE: runRetentionCleanup,
}

var retentionUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Report sampled storage usage",
	RunE:  runRetentionUsage,
}

var retentionSessionCmd = &cobra.Command{
	Use:   "session <id>",
	Short: "Apply the session retention policy to one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetentionSession,
}

func init() {
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionCleanupCmd, retentionUsageCmd, retentionSessionCmd)

	retentionCleanupCmd.Flags().IntVar(&retentionFlags.days, "days", -1, "continuous retention in days (default from config)")
	retentionCleanupCmd.Flags().BoolVar(&retentionFlags.sessions, "sessions", false, "also clean up expired sessions")
}

// newEngine opens the configured object store and builds an engine on it.
func newEngine() (*retention.Engine, objectstore.Store, error) {
	store, err := openStore(&cfg.ObjectStore)
	if err != nil {
		return nil, nil, err
	}
	engine, err := retention.NewEngine(store, retention.Options{
		ListPageCap:       cfg.Retention.ListPageCap,
		SampleCap:         cfg.Retention.SampleCap,
		DeleteConcurrency: cfg.Retention.DeleteConcurrency,
		Metrics:           metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return engine, store, nil
}

// cleanupReport lists the result of each cleanup job that ran.
type cleanupReport struct {
	Jobs []cleanupJob `json:"jobs" yaml:"jobs"`
}

type cleanupJob struct {
	Job        string                  `json:"job" yaml:"job"`
	Result     retention.CleanupResult `json:"result" yaml:"result"`
	DurationMs int64                   `json:"duration_ms" yaml:"duration_ms"`
}

func (r *cleanupReport) add(job string, result retention.CleanupResult) {
	r.Jobs = append(r.Jobs, cleanupJob{Job: job, Result: result, DurationMs: result.DurationMs()})
}

func (r *cleanupReport) Headers() []string {
	return []string{"JOB", "DELETED", "FREED_BYTES", "PROCESSED", "ERRORS", "DURATION_MS"}
}

func (r *cleanupReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		rows = append(rows, []string{
			j.Job,
			strconv.Itoa(j.Result.DeletedObjects),
			strconv.FormatInt(j.Result.FreedSpaceBytes, 10),
			strconv.Itoa(len(j.Result.ProcessedPaths)),
			strconv.Itoa(len(j.Result.Errors)),
			strconv.FormatInt(j.DurationMs, 10),
		})
	}
	return rows
}

// failed reports the first job that recorded errors.
func (r *cleanupReport) failed() error {
	for _, j := range r.Jobs {
		if n := len(j.Result.Errors); n > 0 {
			return fmt.Errorf("%s cleanup recorded %d errors, first: %s", j.Job, n, j.Result.Errors[0])
		}
	}
	return nil
}

func runRetentionCleanup(cmd *cobra.Command, args []string) error {
	engine, store, err := newEngine()
	if err != nil {
		return cli.NewCommandError("retention cleanup", err)
	}
	defer store.Close()

	policy := retention.PolicyFromConfig(&cfg.Retention)
	if retentionFlags.days >= 0 {
		policy.Continuous.RetentionDays = retentionFlags.days
	}
	if err := policy.Validate(); err != nil {
		return cli.NewConfigError("retention", err.Error())
	}

	report := &cleanupReport{}
	report.add(retention.JobContinuous, engine.CleanupContinuousData(cmd.Context(), policy.Continuous.RetentionDays))
	if retentionFlags.sessions {
		policy.Sessions.CleanupEnabled = true
		report.add(retention.JobSessions, engine.CleanupSessions(cmd.Context(), policy))
	}

	if err := render(cmd, report); err != nil {
		return err
	}
	if err := report.failed(); err != nil {
		return cli.NewCommandError("retention cleanup", err)
	}
	return nil
}

// usageReport renders storage metrics as one row per prefix.
type usageReport struct {
	*retention.StorageMetrics
}

func (u usageReport) Headers() []string {
	return []string{"PREFIX", "OBJECTS", "BYTES", "OLDEST", "NEWEST", "SAMPLED"}
}

func (u usageReport) Rows() [][]string {
	rows := make([][]string, 0, 3)
	for _, p := range []retention.PrefixUsage{u.Continuous, u.Sessions} {
		rows = append(rows, []string{
			p.Prefix,
			strconv.Itoa(p.TotalObjects),
			strconv.FormatInt(p.TotalSizeBytes, 10),
			formatTime(p.OldestObject),
			formatTime(p.NewestObject),
			strconv.FormatBool(p.Sampled),
		})
	}
	summary := fmt.Sprintf("active=%d completed=%d", u.ActiveSessions, u.CompletedSessions)
	return append(rows, []string{"sessions", summary, "", "", "", ""})
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func runRetentionUsage(cmd *cobra.Command, args []string) error {
	engine, store, err := newEngine()
	if err != nil {
		return cli.NewCommandError("retention usage", err)
	}
	defer store.Close()

	usage, err := engine.GetStorageUsage(cmd.Context())
	if err != nil {
		return cli.NewCommandError("retention usage", err)
	}
	if outputFormat == string(cli.FormatText) || outputFormat == string(cli.FormatCSV) {
		return render(cmd, usageReport{usage})
	}
	return render(cmd, usage)
}

func runRetentionSession(cmd *cobra.Command, args []string) error {
	engine, store, err := newEngine()
	if err != nil {
		return cli.NewCommandError("retention session", err)
	}
	defer store.Close()

	result, err := engine.ManageSessionData(cmd.Context(), args[0], retention.PolicyFromConfig(&cfg.Retention))
	if err != nil {
		return cli.NewCommandError("retention session", err)
	}

	report := &cleanupReport{}
	report.add(retention.JobSessions, result)
	return render(cmd, report)
}
