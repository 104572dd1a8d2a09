package pipeline

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StageRun is an append-only stage start event. Rows for one run arrive in no
// particular order.
type StageRun struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RunID     string    `gorm:"column:run_id;not null;index:idx_stage_run_run_started,priority:1" json:"run_id"`
	StageName string    `gorm:"column:stage_name;not null" json:"stage_name"`
	Status    *string   `gorm:"column:status" json:"status,omitempty"`
	StartedAt time.Time `gorm:"column:started_at;not null;index:idx_stage_run_run_started,priority:2" json:"started_at"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (StageRun) TableName() string { return "pipeline_stage_run" }

func (s *StageRun) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *StageRun) BeforeSave(*gorm.DB) error {
	s.StartedAt = s.StartedAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return nil
}
