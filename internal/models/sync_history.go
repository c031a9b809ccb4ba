package models

import "time"

// SyncHistory is the rolling per-entity-kind run summary. Unlike the cursor
// ledger it is mutated in place, one row per entity kind, and never deleted.
// Times counts consecutive failures and is reset to zero by any success.
type SyncHistory struct {
	EntityKind    string    `gorm:"primaryKey;type:varchar(20)"`
	Times         int       `gorm:"not null;default:0"`
	LastStatus    string    `gorm:"type:varchar(20);not null"`
	ImportedCount int       `gorm:"not null;default:0"`
	FailedCount   int       `gorm:"not null;default:0"`
	DurationMs    int64     `gorm:"not null;default:0"`
	RanAt         time.Time `gorm:"type:timestamptz;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SyncHistory) TableName() string {
	return "sync_history"
}

// CrawlFailure records an external identifier that exhausted its retry budget
// during ingestion. Append-only; (entity_kind, external_id) is unique so an
// identifier is logged at most once.
type CrawlFailure struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	EntityKind string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_crawl_failure_ident,priority:1"`
	ExternalID string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_crawl_failure_ident,priority:2"`
	Reason     string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (CrawlFailure) TableName() string {
	return "crawl_failures"
}
