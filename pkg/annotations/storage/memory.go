package storage

import (
	"context"
	"sync"
	"time"

	"mercator-hq/chaoslab/pkg/annotations"
)

// MemoryStorage implements annotations.Storage with an in-memory slice kept
// in insertion order.
type MemoryStorage struct {
	records []*annotations.Record
	mu      sync.RWMutex

	// storeHook, when set, is consulted before each store (for testing).
	storeHook func(record *annotations.Record) error
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *annotations.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storeHook != nil {
		if err := s.storeHook(record); err != nil {
			return annotations.NewStorageError("memory", "store", err)
		}
	}

	s.records = append(s.records, record.Clone())
	return nil
}

// Query returns copies of matching records in insertion order.
func (s *MemoryStorage) Query(ctx context.Context, filter *annotations.Filter) ([]*annotations.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*annotations.Record{}
	for _, record := range s.records {
		if !filter.Matches(record) {
			continue
		}
		results = append(results, record.Clone())
		if filter != nil && filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}

	return results, nil
}

// DeleteExpired removes records that expired at or before now.
func (s *MemoryStorage) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, record := range s.records {
		if record.Expired(now) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	// Clear the tail so dropped records can be collected.
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = nil
	}
	s.records = kept

	return deleted, nil
}

// Close releases resources held by the storage backend.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	return nil
}

// SetStoreHook installs a function consulted before every store. A non-nil
// return value fails that store (for testing).
func (s *MemoryStorage) SetStoreHook(hook func(record *annotations.Record) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeHook = hook
}

// Size returns the number of records in storage (for testing).
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
