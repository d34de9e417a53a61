package store

import "time"

// snapshotRow is one archived pipeline item. The composite primary key makes
// retried writes idempotent.
type snapshotRow struct {
	Stage     string    `gorm:"primaryKey;size:16"`
	Source    string    `gorm:"primaryKey;size:32"`
	ItemID    string    `gorm:"primaryKey;size:128;column:item_id"`
	Payload   []byte    `gorm:"type:bytes"`
	UpdatedAt time.Time `gorm:"index"`
}

func (snapshotRow) TableName() string { return "stage_snapshots" }

// cacheRow backs the durable cache tier. Expiry is evaluated on read from
// stored_at + ttl_seconds.
type cacheRow struct {
	Key        string    `gorm:"primaryKey;size:256"`
	Payload    []byte    `gorm:"type:bytes"`
	StoredAt   time.Time `gorm:"column:stored_at"`
	TTLSeconds int       `gorm:"column:ttl_seconds"`
}

func (cacheRow) TableName() string { return "cache_entries" }
