package pipeline

import (
	"time"

	"gorm.io/gorm"
)

// Run is keyed by the correlation id shared by jobs, stage events and feedback.
// CancelRequested is advisory: workers poll it and stop themselves.
type Run struct {
	RunID           string     `gorm:"column:run_id;primaryKey" json:"run_id"`
	PropertyID      *string    `gorm:"column:property_id;index" json:"property_id"`
	Status          *string    `gorm:"column:status;index" json:"status"`
	StartedAt       *time.Time `gorm:"column:started_at;autoCreateTime:false;index" json:"started_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
	CancelRequested bool       `gorm:"column:cancel_requested;not null;default:false" json:"cancel_requested"`
}

func (Run) TableName() string { return "pipeline_run" }

func (r *Run) BeforeSave(*gorm.DB) error {
	r.StartedAt = utcPtr(r.StartedAt)
	r.UpdatedAt = r.UpdatedAt.UTC()
	return nil
}
