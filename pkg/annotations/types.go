package annotations

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignalType identifies the telemetry signal an annotation applies to.
type SignalType string

const (
	SignalTraces  SignalType = "traces"
	SignalMetrics SignalType = "metrics"
	SignalLogs    SignalType = "logs"
	SignalAll     SignalType = "all"
)

// Valid reports whether s is a known signal type.
func (s SignalType) Valid() bool {
	switch s {
	case SignalTraces, SignalMetrics, SignalLogs, SignalAll:
		return true
	}
	return false
}

// ValueType describes how Record.Value is encoded.
type ValueType string

const (
	ValueString ValueType = "string"
	ValueNumber ValueType = "number"
	ValueBool   ValueType = "bool"
	ValueJSON   ValueType = "json"
)

// Valid reports whether v is a known value type.
func (v ValueType) Valid() bool {
	switch v {
	case ValueString, ValueNumber, ValueBool, ValueJSON:
		return true
	}
	return false
}

// TimeRange is the closed interval an annotation covers.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Record is a single annotation.
type Record struct {
	ID         string     `json:"id"`
	SignalType SignalType `json:"signal_type"`
	TimeRange  TimeRange  `json:"time_range"`

	// Key is a dotted name such as "diag.session.started".
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ValueType ValueType `json:"value_type"`

	// Provenance
	CreatedBy string `json:"created_by"`
	SessionID string `json:"session_id,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SetString stores a string value.
func (r *Record) SetString(s string) {
	r.Value = s
	r.ValueType = ValueString
}

// SetNumber stores a numeric value.
func (r *Record) SetNumber(f float64) {
	r.Value = strconv.FormatFloat(f, 'g', -1, 64)
	r.ValueType = ValueNumber
}

// SetBool stores a boolean value.
func (r *Record) SetBool(b bool) {
	r.Value = strconv.FormatBool(b)
	r.ValueType = ValueBool
}

// SetJSON stores v encoded as JSON.
func (r *Record) SetJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode annotation value: %w", err)
	}
	r.Value = string(data)
	r.ValueType = ValueJSON
	return nil
}

// Validate checks that the record is well formed.
func (r *Record) Validate() error {
	if r.Key == "" {
		return NewValidationError("key", "key cannot be empty")
	}
	if !r.SignalType.Valid() {
		return NewValidationError("signal_type", fmt.Sprintf("unknown signal type %q", r.SignalType))
	}
	if !r.ValueType.Valid() {
		return NewValidationError("value_type", fmt.Sprintf("unknown value type %q", r.ValueType))
	}
	if r.TimeRange.End.Before(r.TimeRange.Start) {
		return NewValidationError("time_range", "end must not be before start")
	}
	switch r.ValueType {
	case ValueNumber:
		if _, err := strconv.ParseFloat(r.Value, 64); err != nil {
			return NewValidationError("value", fmt.Sprintf("%q is not a number", r.Value))
		}
	case ValueBool:
		if _, err := strconv.ParseBool(r.Value); err != nil {
			return NewValidationError("value", fmt.Sprintf("%q is not a bool", r.Value))
		}
	case ValueJSON:
		if !json.Valid([]byte(r.Value)) {
			return NewValidationError("value", "value is not valid JSON")
		}
	}
	return nil
}

// Expired reports whether the record has expired at now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// Filter selects annotations. Zero-valued fields do not constrain results.
type Filter struct {
	SignalType SignalType
	KeyPrefix  string
	CreatedBy  string
	SessionID  string

	// Records whose time range overlaps [Start, End] match.
	Start *time.Time
	End   *time.Time

	// Limit caps the number of results; 0 means unlimited.
	Limit int
}

// Matches reports whether r satisfies the filter.
func (f *Filter) Matches(r *Record) bool {
	if f == nil {
		return true
	}
	if f.SignalType != "" && r.SignalType != f.SignalType {
		return false
	}
	if f.KeyPrefix != "" && !strings.HasPrefix(r.Key, f.KeyPrefix) {
		return false
	}
	if f.CreatedBy != "" && r.CreatedBy != f.CreatedBy {
		return false
	}
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	if f.Start != nil && r.TimeRange.End.Before(*f.Start) {
		return false
	}
	if f.End != nil && r.TimeRange.Start.After(*f.End) {
		return false
	}
	return true
}

// Storage persists annotation records.
// Implementations must be safe for concurrent use and return query results
// in creation order.
type Storage interface {
	Store(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter *Filter) ([]*Record, error)

	// DeleteExpired removes records whose ExpiresAt is at or before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	Close() error
}

// Recorder is the capability consumed by the diagnostics orchestrator.
type Recorder interface {
	// Annotate stores the record, assigning ID and CreatedAt, and returns the ID.
	Annotate(ctx context.Context, record *Record) (string, error)

	// Query returns matching records in creation order.
	Query(ctx context.Context, filter *Filter) ([]*Record, error)

	// DeleteExpired removes expired records and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
