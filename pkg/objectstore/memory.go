package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data []byte
	meta Object
}

// MemoryStore implements Store with an in-memory map.
// It is intended for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject

	// deleteHook, when set, is consulted before each delete (for testing).
	deleteHook func(key string) error

	listCalls   int
	listedTotal int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*memoryObject),
	}
}

// List returns one page of objects under opts.Prefix in key order.
func (s *MemoryStore) List(ctx context.Context, opts ListOptions) (*ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewStorageError("memory", "list", "", true, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		if strings.HasPrefix(key, opts.Prefix) && key > opts.StartAfter {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	max := pageSize(opts)
	page := &ListPage{}
	if len(keys) > max {
		keys = keys[:max]
		page.Truncated = true
	}
	for _, key := range keys {
		page.Objects = append(page.Objects, s.objects[key].meta)
	}
	if page.Truncated {
		page.NextToken = keys[len(keys)-1]
	}

	s.listCalls++
	s.listedTotal += len(page.Objects)

	return page, nil
}

// Get returns the content and descriptor of key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, *Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, nil, NewStorageError("memory", "get", key, false, ErrNotFound)
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	meta := obj.meta
	return data, &meta, nil
}

// Put stores data under key.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) (*Object, error) {
	return s.PutAt(ctx, key, data, time.Now())
}

// PutAt stores data under key with an explicit modification time.
// Useful for seeding aged data in tests.
func (s *MemoryStore) PutAt(ctx context.Context, key string, data []byte, modified time.Time) (*Object, error) {
	if key == "" {
		return nil, NewStorageError("memory", "put", key, false, fmt.Errorf("key cannot be empty"))
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	meta := Object{
		Key:          key,
		Size:         int64(len(data)),
		LastModified: modified,
		ETag:         ComputeETag(data),
	}

	s.mu.Lock()
	s.objects[key] = &memoryObject{data: stored, meta: meta}
	s.mu.Unlock()

	return &meta, nil
}

// Delete removes key. Missing keys are ignored.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	hook := s.deleteHook
	s.mu.Unlock()

	if hook != nil {
		if err := hook(key); err != nil {
			return NewStorageError("memory", "delete", key, true, err)
		}
	}

	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Close clears the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects = make(map[string]*memoryObject)
	return nil
}

// SetDeleteHook installs a function consulted before every delete. A non-nil
// return value fails that delete (for testing).
func (s *MemoryStore) SetDeleteHook(hook func(key string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteHook = hook
}

// Size returns the number of stored objects (for testing).
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Has reports whether key exists (for testing).
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

// ListStats returns the number of List calls served and the total number of
// objects returned across them (for testing).
func (s *MemoryStore) ListStats() (calls, listed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCalls, s.listedTotal
}
