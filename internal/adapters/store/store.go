// Package store is the durable document store: stage snapshots archived by
// the persistence coordinator, the durable cache tier, and the aggregation
// reads behind /stats. Backed by Postgres through gorm.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/feedmill/internal/domain/model"
)

// Pipeline stages archived as snapshots. (stage, source, item id) is the
// idempotent upsert key, so retried writes never duplicate data.
const (
	StageRaw      = "raw"
	StageEnriched = "enriched"
	StageRanked   = "ranked"
	StageMixed    = "mixed"
)

// MixedSource is the pseudo-source snapshots of the mixed feed are filed
// under.
const MixedSource = "feed"

// Record is one snapshot row bound for the archive.
type Record struct {
	Source  string
	ItemID  string
	Payload []byte
}

// StageCount is one aggregation bucket for analytics reads.
type StageCount struct {
	Stage  string `json:"stage"`
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// New connects to Postgres and migrates the schema.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&snapshotRow{}, &cacheRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing gorm handle. Used by tests.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// UpsertSnapshots archives one batch for a stage. The write is an idempotent
// upsert on (stage, source, item_id).
func (s *Store) UpsertSnapshots(ctx context.Context, stage string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]snapshotRow, len(records))
	for i, r := range records {
		rows[i] = snapshotRow{
			Stage:     stage,
			Source:    r.Source,
			ItemID:    r.ItemID,
			Payload:   r.Payload,
			UpdatedAt: now,
		}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stage"}, {Name: "source"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("%w: upsert %s snapshots: %v", ErrPersistFailed, stage, err)
	}
	return nil
}

// RecentRaw returns the raw snapshots for a source written inside the given
// window, newest first. It backs the stale-but-available fallback when a
// live fetch fails.
func (s *Store) RecentRaw(ctx context.Context, source model.Source, window time.Duration) ([]model.RawItem, error) {
	var rows []snapshotRow
	cutoff := time.Now().UTC().Add(-window)
	err := s.db.WithContext(ctx).
		Where("stage = ? AND source = ? AND updated_at > ?", StageRaw, string(source), cutoff).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read recent raw snapshots for %s: %w", source, err)
	}

	items := make([]model.RawItem, 0, len(rows))
	for _, row := range rows {
		var item model.RawItem
		if err := json.Unmarshal(row.Payload, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// StageCounts groups archived snapshots by stage and source for analytics.
func (s *Store) StageCounts(ctx context.Context) ([]StageCount, error) {
	var counts []StageCount
	err := s.db.WithContext(ctx).
		Model(&snapshotRow{}).
		Select("stage, source, count(*) as count").
		Group("stage").Group("source").
		Order("stage").Order("source").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate stage counts: %w", err)
	}
	return counts, nil
}
