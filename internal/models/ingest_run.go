package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	IngestRunRunning   = "running"
	IngestRunSucceeded = "succeeded"
	IngestRunTruncated = "truncated"
	IngestRunFailed    = "failed"
)

// IngestRun journals one pass of the ingestion engine.
type IngestRun struct {
	ID           string `gorm:"primaryKey;type:uuid"`
	Destination  string `gorm:"type:varchar(64);not null;index"`
	CursorBefore int64  `gorm:"not null"`
	CursorAfter  int64  `gorm:"not null"`

	Pages      int            `gorm:"not null;default:0"`
	Seen       int            `gorm:"not null;default:0"`
	Processed  int            `gorm:"not null;default:0"`
	Duplicates int            `gorm:"not null;default:0"`
	Skipped    int            `gorm:"not null;default:0"`
	Status     string         `gorm:"type:varchar(20);not null;index"`
	Error      *string        `gorm:"type:text"`
	SkipCounts datatypes.JSON `gorm:"type:jsonb"`

	StartedAt  time.Time  `gorm:"type:timestamptz;not null;index"`
	FinishedAt *time.Time `gorm:"type:timestamptz"`
}

func (IngestRun) TableName() string {
	return "ingest_runs"
}
