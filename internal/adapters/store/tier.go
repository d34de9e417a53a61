package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DurableTier exposes the cache_entries table as the slow tier of the
// tiered cache.
type DurableTier struct {
	db *gorm.DB
}

// CacheTier returns the durable cache tier view of the store.
func (s *Store) CacheTier() *DurableTier {
	return &DurableTier{db: s.db}
}

// Get returns the payload for key unless its TTL has lapsed. Expired rows
// are deleted opportunistically.
func (t *DurableTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row cacheRow
	err := t.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	expiresAt := row.StoredAt.Add(time.Duration(row.TTLSeconds) * time.Second)
	if time.Now().UTC().After(expiresAt) {
		_ = t.db.WithContext(ctx).Where("key = ?", key).Delete(&cacheRow{}).Error
		return nil, false, nil
	}
	return row.Payload, true, nil
}

// Set upserts the payload with TTL-on-write semantics.
func (t *DurableTier) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	row := cacheRow{
		Key:        key,
		Payload:    payload,
		StoredAt:   time.Now().UTC(),
		TTLSeconds: int(ttl.Seconds()),
	}
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "stored_at", "ttl_seconds"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Flush drops every cache entry.
func (t *DurableTier) Flush(ctx context.Context) error {
	if err := t.db.WithContext(ctx).Where("1 = 1").Delete(&cacheRow{}).Error; err != nil {
		return fmt.Errorf("flush cache entries: %w", err)
	}
	return nil
}
