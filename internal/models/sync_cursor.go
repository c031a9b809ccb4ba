package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ActionImport = "import"
	ActionDelta  = "delta"

	EntityArticle   = "article"
	EntityCategory  = "category"
	EntityAttribute = "attribute"
	EntityOrder     = "order"

	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultFailure = "failure"
)

// SyncCursor is one ledger row per ingestion run. Rows are append-only: a run
// never rewrites an earlier cursor, it records a new one, and resume logic reads
// the most recent successful row for its (action, entity) pair.
type SyncCursor struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement"`
	ActionKind  string         `gorm:"type:varchar(20);not null;index:idx_sync_cursor_stream,priority:1"`
	EntityKind  string         `gorm:"type:varchar(20);not null;index:idx_sync_cursor_stream,priority:2"`
	PageSize    int            `gorm:"not null"`
	CurrentPage int            `gorm:"not null"`
	Watermark   *time.Time     `gorm:"type:timestamptz"`
	TotalCount  int            `gorm:"not null;default:0"`
	Result      string         `gorm:"type:varchar(20);not null;index"`
	StartedAt   time.Time      `gorm:"type:timestamptz;not null"`
	FinishedAt  time.Time      `gorm:"type:timestamptz;not null"`
	StatsJSON   datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (SyncCursor) TableName() string {
	return "sync_cursors"
}
