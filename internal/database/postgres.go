package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/punkyapp/diabetes-cockpit/internal/config"
)

// RecommendationBatchRecord is the archived form of one analysis
// run's batch. Items are stored as a JSON document; the archive is
// append-only, rows are never updated.
type RecommendationBatchRecord struct {
	gorm.Model
	RecordedAt time.Time `gorm:"index"`
	ItemsJSON  string
}

func NewPostgresDB(cfg config.ArchiveConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&RecommendationBatchRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return db, nil
}
