package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/chaoslab/pkg/annotations"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/annotations.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements annotations.Storage using SQLite.
type SQLiteStorage struct {
	db         *sql.DB
	config     *SQLiteConfig
	insertStmt *sql.Stmt
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewSQLiteStorage creates a new SQLite storage backend and initializes its
// schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	defaults := DefaultSQLiteConfig()
	if config == nil {
		config = defaults
	}
	if config.Path == "" {
		return nil, annotations.NewStorageError("sqlite", "open", fmt.Errorf("db path cannot be empty"))
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = defaults.MaxOpenConns
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = defaults.MaxIdleConns
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = defaults.BusyTimeout
	}

	logger := slog.Default().With("component", "annotations.storage.sqlite")

	// Connection-scoped pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", config.Path, config.BusyTimeout.Milliseconds())
	if config.WALMode {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, annotations.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite annotation storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize creates the schema, verifies its version and prepares statements.
func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return annotations.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return annotations.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return annotations.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return annotations.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO annotations (
			id, signal_type, range_start, range_end,
			key, value, value_type,
			created_by, session_id,
			created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return annotations.NewStorageError("sqlite", "prepare", err)
	}

	return nil
}

// Store persists an annotation record.
func (s *SQLiteStorage) Store(ctx context.Context, record *annotations.Record) error {
	var sessionID, expiresAt interface{}
	if record.SessionID != "" {
		sessionID = record.SessionID
	}
	if record.ExpiresAt != nil {
		expiresAt = record.ExpiresAt.UnixNano()
	}

	_, err := s.insertStmt.ExecContext(ctx,
		record.ID, string(record.SignalType), record.TimeRange.Start.UnixNano(), record.TimeRange.End.UnixNano(),
		record.Key, record.Value, string(record.ValueType),
		record.CreatedBy, sessionID,
		record.CreatedAt.UnixNano(), expiresAt,
	)
	if err != nil {
		return annotations.NewStorageError("sqlite", "store", err)
	}

	return nil
}

// Query retrieves matching records ordered by creation time.
func (s *SQLiteStorage) Query(ctx context.Context, filter *annotations.Filter) ([]*annotations.Record, error) {
	whereClause, args := buildWhereClause(filter)

	sqlQuery := `SELECT id, signal_type, range_start, range_end, key, value, value_type,
		created_by, session_id, created_at, expires_at FROM annotations`
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += " ORDER BY created_at ASC, rowid ASC"
	if filter != nil && filter.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, annotations.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*annotations.Record{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, annotations.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, annotations.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// DeleteExpired removes records that expired at or before now.
func (s *SQLiteStorage) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM annotations WHERE expires_at IS NOT NULL AND expires_at <= ?", now.UnixNano())
	if err != nil {
		return 0, annotations.NewStorageError("sqlite", "delete_expired", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, annotations.NewStorageError("sqlite", "delete_expired", err)
	}

	return count, nil
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		if s.insertStmt != nil {
			s.insertStmt.Close()
		}
		if err := s.db.Close(); err != nil {
			closeErr = annotations.NewStorageError("sqlite", "close", err)
			return
		}
		s.logger.Info("SQLite annotation storage closed")
	})
	return closeErr
}

// buildWhereClause builds a SQL WHERE clause (without the keyword) and its
// arguments from filter.
func buildWhereClause(filter *annotations.Filter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if filter.SignalType != "" {
		conditions = append(conditions, "signal_type = ?")
		args = append(args, string(filter.SignalType))
	}
	if filter.KeyPrefix != "" {
		conditions = append(conditions, "substr(key, 1, ?) = ?")
		args = append(args, len(filter.KeyPrefix), filter.KeyPrefix)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Start != nil {
		conditions = append(conditions, "range_end >= ?")
		args = append(args, filter.Start.UnixNano())
	}
	if filter.End != nil {
		conditions = append(conditions, "range_start <= ?")
		args = append(args, filter.End.UnixNano())
	}

	return strings.Join(conditions, " AND "), args
}

// scanRow scans a database row into a Record.
func scanRow(rows *sql.Rows) (*annotations.Record, error) {
	var (
		record                          annotations.Record
		signalType, valueType           string
		rangeStart, rangeEnd, createdAt int64
		sessionID                       sql.NullString
		expiresAt                       sql.NullInt64
	)

	err := rows.Scan(
		&record.ID, &signalType, &rangeStart, &rangeEnd,
		&record.Key, &record.Value, &valueType,
		&record.CreatedBy, &sessionID,
		&createdAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}

	record.SignalType = annotations.SignalType(signalType)
	record.ValueType = annotations.ValueType(valueType)
	record.TimeRange = annotations.TimeRange{
		Start: time.Unix(0, rangeStart),
		End:   time.Unix(0, rangeEnd),
	}
	record.CreatedAt = time.Unix(0, createdAt)
	if sessionID.Valid {
		record.SessionID = sessionID.String
	}
	if expiresAt.Valid {
		t := time.Unix(0, expiresAt.Int64)
		record.ExpiresAt = &t
	}

	return &record, nil
}
