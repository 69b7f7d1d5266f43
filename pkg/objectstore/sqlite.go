package objectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteConfig configures the SQLite object store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore implements Store on a single SQLite database file.
// Object payloads are stored inline as BLOBs, which suits the modest
// object sizes of annotation-adjacent telemetry captures.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	logger    *slog.Logger
	closeOnce sync.Once

	putStmt    *sql.Stmt
	getStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewSQLiteStore opens (or creates) an SQLite object store.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", "", false, err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		path:   cfg.Path,
		logger: slog.Default().With("component", "objectstore.sqlite"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "create_schema", "", false, err)
	}

	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "prepare", "", false, err)
	}

	s.logger.Info("SQLite object store initialized", "path", cfg.Path)

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS objects (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		size INTEGER NOT NULL,
		etag TEXT NOT NULL,
		last_modified INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_objects_last_modified ON objects(last_modified);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.putStmt, err = s.db.Prepare(`
		INSERT INTO objects (key, data, size, etag, last_modified)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			data = excluded.data,
			size = excluded.size,
			etag = excluded.etag,
			last_modified = excluded.last_modified
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare put statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT data, size, etag, last_modified FROM objects WHERE key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM objects WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return nil
}

// List returns one page of objects under opts.Prefix in key order.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) (*ListPage, error) {
	max := pageSize(opts)

	// Fetch one extra row to detect truncation.
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, size, etag, last_modified FROM objects
		WHERE key LIKE ? ESCAPE '\' AND key > ?
		ORDER BY key ASC
		LIMIT ?`,
		escapeLike(opts.Prefix)+"%", opts.StartAfter, max+1,
	)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", "", true, err)
	}
	defer rows.Close()

	page := &ListPage{}
	for rows.Next() {
		var (
			obj      Object
			modified int64
		)
		if err := rows.Scan(&obj.Key, &obj.Size, &obj.ETag, &modified); err != nil {
			return nil, NewStorageError("sqlite", "list", "", false, err)
		}
		obj.LastModified = time.Unix(0, modified)
		page.Objects = append(page.Objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list", "", true, err)
	}

	if len(page.Objects) > max {
		page.Objects = page.Objects[:max]
		page.Truncated = true
		page.NextToken = page.Objects[max-1].Key
	}

	return page, nil
}

// Get returns the content and descriptor of key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, *Object, error) {
	var (
		data     []byte
		modified int64
	)
	obj := &Object{Key: key}

	err := s.getStmt.QueryRowContext(ctx, key).Scan(&data, &obj.Size, &obj.ETag, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, NewStorageError("sqlite", "get", key, false, ErrNotFound)
	}
	if err != nil {
		return nil, nil, NewStorageError("sqlite", "get", key, true, err)
	}
	obj.LastModified = time.Unix(0, modified)

	return data, obj, nil
}

// Put stores data under key, replacing any existing object.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) (*Object, error) {
	if key == "" {
		return nil, NewStorageError("sqlite", "put", key, false, fmt.Errorf("key cannot be empty"))
	}

	obj := &Object{
		Key:          key,
		Size:         int64(len(data)),
		LastModified: time.Now(),
		ETag:         ComputeETag(data),
	}
	if data == nil {
		data = []byte{}
	}

	if _, err := s.putStmt.ExecContext(ctx, key, data, obj.Size, obj.ETag, obj.LastModified.UnixNano()); err != nil {
		return nil, NewStorageError("sqlite", "put", key, true, err)
	}

	return obj, nil
}

// Delete removes key. Missing keys are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, key); err != nil {
		return NewStorageError("sqlite", "delete", key, true, err)
	}
	return nil
}

// Close releases the database. Close is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.putStmt, s.getStmt, s.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		if err := s.db.Close(); err != nil {
			closeErr = NewStorageError("sqlite", "close", "", false, err)
			return
		}
		s.logger.Info("SQLite object store closed", "path", s.path)
	})

	return closeErr
}

// escapeLike escapes LIKE wildcards so prefix matches are literal.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
