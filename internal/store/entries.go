// Package store holds the session-lifetime sequences the cockpit reads:
// the glucose entry store and the recommendation history log. Both are
// append-only and owned by a single producer path; readers always see
// fully-published snapshots.
package store

import (
	"sync"

	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// EntryStore keeps the append-ordered glucose readings of one session.
type EntryStore struct {
	mu      sync.RWMutex
	entries []domain.GlucoseEntry
	current *domain.GlucoseEntry
}

// NewEntryStore creates an empty store.
func NewEntryStore() *EntryStore {
	return &EntryStore{}
}

// Append adds a reading. It always succeeds; deduplication is the
// producer path's responsibility, not the store's.
func (s *EntryStore) Append(entry domain.GlucoseEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if s.current == nil || entry.Timestamp.After(s.current.Timestamp) {
		e := entry
		s.current = &e
	}
}

// Current returns the most recent reading by timestamp, or nil when
// the store is empty.
func (s *EntryStore) Current() *domain.GlucoseEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	e := *s.current
	return &e
}

// Snapshot returns a copy of all readings in append order, oldest first.
func (s *EntryStore) Snapshot() []domain.GlucoseEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GlucoseEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of stored readings.
func (s *EntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
