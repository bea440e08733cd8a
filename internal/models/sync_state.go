package models

import (
	"time"

	"gorm.io/datatypes"
)

type SyncState struct {
	Scope         string         `gorm:"primaryKey;type:text" json:"scope"`
	Cursor        *string        `gorm:"type:text" json:"cursor,omitempty"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz" json:"lastSuccessAt,omitempty"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz" json:"lastAttemptAt,omitempty"`
	LastError     *string        `gorm:"type:text" json:"lastError,omitempty"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb" json:"stats,omitempty"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
