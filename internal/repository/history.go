// Package repository persists recommendation batches across sessions.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/punkyapp/diabetes-cockpit/internal/database"
	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// HistoryArchive is the gorm-backed batch archive. It implements
// domain.BatchArchive.
type HistoryArchive struct {
	db *gorm.DB
}

// NewHistoryArchive creates an archive on an open database handle.
func NewHistoryArchive(db *gorm.DB) *HistoryArchive {
	return &HistoryArchive{db: db}
}

// SaveBatch appends one batch to the archive.
func (a *HistoryArchive) SaveBatch(ctx context.Context, batch domain.RecommendationBatch) error {
	payload, err := json.Marshal(batch.Items)
	if err != nil {
		return fmt.Errorf("encoding batch items: %w", err)
	}

	record := &database.RecommendationBatchRecord{
		RecordedAt: batch.Timestamp,
		ItemsJSON:  string(payload),
	}
	if err := a.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create batch record: %w", err)
	}
	return nil
}

// LoadBatches returns all archived batches, oldest first, so the
// session history log can be warm-loaded at startup.
func (a *HistoryArchive) LoadBatches(ctx context.Context) ([]domain.RecommendationBatch, error) {
	var records []database.RecommendationBatchRecord
	if err := a.db.WithContext(ctx).
		Order("recorded_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load batch records: %w", err)
	}

	batches := make([]domain.RecommendationBatch, 0, len(records))
	for _, r := range records {
		var items []domain.RecommendationItem
		if err := json.Unmarshal([]byte(r.ItemsJSON), &items); err != nil {
			return nil, fmt.Errorf("decoding batch %d: %w", r.ID, err)
		}
		batches = append(batches, domain.RecommendationBatch{
			Timestamp: r.RecordedAt,
			Items:     items,
		})
	}
	return batches, nil
}
