package objectstore

import (
	"context"
	"time"
)

// Root prefixes for captured telemetry.
const (
	ContinuousPrefix = "continuous/"
	SessionsPrefix   = "sessions/"
)

// DefaultPageSize is the page size used when ListOptions.MaxKeys is zero.
const DefaultPageSize = 1000

// Object describes a stored blob.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag,omitempty"`
}

// ListOptions controls a single List call.
type ListOptions struct {
	// Prefix restricts results to keys starting with Prefix.
	Prefix string

	// MaxKeys is the maximum number of objects returned in one page.
	// Zero means DefaultPageSize.
	MaxKeys int

	// StartAfter is the continuation token: only keys strictly greater
	// than StartAfter are returned.
	StartAfter string
}

// ListPage is one page of a listing, ordered by key.
type ListPage struct {
	Objects []Object

	// Truncated reports whether more keys exist after this page.
	Truncated bool

	// NextToken is the StartAfter value for the next page.
	NextToken string
}

// Store is a hierarchical blob store.
// Implementations must be safe for concurrent use.
type Store interface {
	// List returns one page of objects under opts.Prefix in key order.
	List(ctx context.Context, opts ListOptions) (*ListPage, error)

	// Get returns the content and descriptor of key.
	// Returns an error matching ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, *Object, error)

	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte) (*Object, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

func pageSize(opts ListOptions) int {
	if opts.MaxKeys <= 0 {
		return DefaultPageSize
	}
	return opts.MaxKeys
}
