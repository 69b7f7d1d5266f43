package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/chaoslab/pkg/annotations"
)

// Config contains configuration for the annotation recorder.
type Config struct {
	// CreatedBy is the provenance label applied to records that carry none.
	// Default: "chaoslab"
	CreatedBy string

	// DefaultTTL sets ExpiresAt on records that carry none. Zero means
	// records never expire.
	DefaultTTL time.Duration

	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		CreatedBy:    "chaoslab",
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder records annotations into a storage backend.
type Recorder struct {
	storage annotations.Storage
	config  *Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a recorder writing to storage.
func New(storage annotations.Storage, config *Config) *Recorder {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.CreatedBy == "" {
		config.CreatedBy = defaults.CreatedBy
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	return &Recorder{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "annotations.recorder"),
		now:     time.Now,
	}
}

// Annotate stores a copy of record and returns its generated ID.
// Missing fields are filled in: SignalType defaults to "all", ValueType to
// "string", the time range to the creation instant.
func (r *Recorder) Annotate(ctx context.Context, record *annotations.Record) (string, error) {
	if record == nil {
		return "", annotations.NewRecorderError("", annotations.NewValidationError("record", "record cannot be nil"))
	}

	now := r.now()
	rec := record.Clone()
	rec.ID = uuid.New().String()
	rec.CreatedAt = now

	if rec.SignalType == "" {
		rec.SignalType = annotations.SignalAll
	}
	if rec.ValueType == "" {
		rec.ValueType = annotations.ValueString
	}
	if rec.CreatedBy == "" {
		rec.CreatedBy = r.config.CreatedBy
	}
	if rec.TimeRange.Start.IsZero() {
		rec.TimeRange.Start = now
	}
	if rec.TimeRange.End.IsZero() {
		rec.TimeRange.End = rec.TimeRange.Start
	}
	if rec.ExpiresAt == nil && r.config.DefaultTTL > 0 {
		expires := now.Add(r.config.DefaultTTL)
		rec.ExpiresAt = &expires
	}

	if err := rec.Validate(); err != nil {
		return "", annotations.NewRecorderError(rec.Key, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(writeCtx, rec); err != nil {
		r.logger.Error("failed to store annotation",
			"key", rec.Key,
			"session_id", rec.SessionID,
			"error", err,
		)
		return "", annotations.NewRecorderError(rec.Key, err)
	}

	r.logger.Debug("annotation recorded",
		"annotation_id", rec.ID,
		"key", rec.Key,
		"session_id", rec.SessionID,
	)

	return rec.ID, nil
}

// Query returns matching records in creation order.
func (r *Recorder) Query(ctx context.Context, filter *annotations.Filter) ([]*annotations.Record, error) {
	return r.storage.Query(ctx, filter)
}

// DeleteExpired removes records whose ExpiresAt has passed.
func (r *Recorder) DeleteExpired(ctx context.Context) (int64, error) {
	deleted, err := r.storage.DeleteExpired(ctx, r.now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Info("expired annotations deleted", "deleted_count", deleted)
	}
	return deleted, nil
}

var _ annotations.Recorder = (*Recorder)(nil)
