package store

import (
	"sync"

	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// HistoryLog is the append-only log of recommendation batches for one
// session. Order is strictly chronological; consumers wanting
// reverse-chronological display reverse the slice themselves.
type HistoryLog struct {
	mu      sync.RWMutex
	batches []domain.RecommendationBatch
}

// NewHistoryLog creates an empty log, optionally pre-seeded with
// batches warm-loaded from an archive.
func NewHistoryLog(seed ...domain.RecommendationBatch) *HistoryLog {
	log := &HistoryLog{}
	log.batches = append(log.batches, seed...)
	return log
}

// Append adds a batch to the end of the log.
func (l *HistoryLog) Append(batch domain.RecommendationBatch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, batch)
}

// History returns a copy of all batches, oldest first.
func (l *HistoryLog) History() []domain.RecommendationBatch {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.RecommendationBatch, len(l.batches))
	copy(out, l.batches)
	return out
}

// Latest returns the most recently appended batch, or nil when the
// log is empty.
func (l *HistoryLog) Latest() *domain.RecommendationBatch {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.batches) == 0 {
		return nil
	}
	b := l.batches[len(l.batches)-1]
	return &b
}
