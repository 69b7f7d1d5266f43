package diagnostics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// entry is the registry record for one session: its state plus the handle
// of the goroutine driving it.
type entry struct {
	mu      sync.Mutex
	session *Session

	cancel        context.CancelFunc
	done          chan struct{}
	stopRequested bool
	err           error

	// writeMu serializes descriptor writes so a late writer never stores
	// an older phase over a newer one.
	writeMu sync.Mutex
}

// transition moves the session from -> to if it is still in from.
// Terminal transitions stamp EndTime. It reports whether the move happened.
func (e *entry) transition(from, to Phase, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Phase != from || !canTransition(from, to) {
		return false
	}
	e.session.Phase = to
	if to.Terminal() {
		e.session.EndTime = &now
	}
	return true
}

// appendAnnotation records an annotation id on the session.
func (e *entry) appendAnnotation(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.AnnotationIDs = append(e.session.AnnotationIDs, id)
}

func (e *entry) snapshot() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

func (e *entry) phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Phase
}

func (e *entry) stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopRequested
}

// Registry is a concurrency-safe map of sessions. The map lock guards
// membership only; each entry carries its own lock for state changes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func (r *Registry) add(s *Session) *entry {
	e := &entry{session: s}

	r.mu.Lock()
	r.entries[s.ID] = e
	r.mu.Unlock()

	return e
}

func (r *Registry) get(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return nil, NewNotFoundError(id)
	}
	return e, nil
}

func (r *Registry) all() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id string) (*Session, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot(), nil
}

// List returns snapshots of every session ordered by start time.
func (r *Registry) List() []*Session {
	entries := r.all()

	sessions := make([]*Session, 0, len(entries))
	for _, e := range entries {
		sessions = append(sessions, e.snapshot())
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
	return sessions
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
