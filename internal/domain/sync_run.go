package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncRun records the outcome of one ingestion call.
type SyncRun struct {
	RunID      uuid.UUID      `gorm:"column:run_id;type:uuid;primaryKey" json:"run_id"`
	Source     string         `gorm:"column:source;type:varchar(32)" json:"source"`
	StartedAt  time.Time      `gorm:"column:started_at" json:"started_at"`
	FinishedAt time.Time      `gorm:"column:finished_at" json:"finished_at"`
	Received   int            `gorm:"column:received" json:"received"`
	Inserted   int            `gorm:"column:inserted" json:"inserted"`
	Updated    int            `gorm:"column:updated" json:"updated"`
	Unchanged  int            `gorm:"column:unchanged" json:"unchanged"`
	Skipped    int            `gorm:"column:skipped" json:"skipped"`
	Merged     int            `gorm:"column:merged" json:"merged"`
	Errors     datatypes.JSON `gorm:"column:errors" json:"errors"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.RunID == uuid.Nil {
		r.RunID = uuid.New()
	}
	return nil
}
