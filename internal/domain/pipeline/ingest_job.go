package pipeline

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IngestJob is written by the external ingestion process. Only Status changes
// after creation; CreatedAt is whatever the producer recorded and may be missing.
type IngestJob struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RunID      *string    `gorm:"column:run_id;index" json:"run_id"`
	PropertyID *string    `gorm:"column:property_id;index" json:"property_id"`
	BatchLabel string     `gorm:"column:batch_label;index" json:"batch_label,omitempty"`
	Status     *string    `gorm:"column:status;index" json:"status"`
	CreatedAt  *time.Time `gorm:"column:created_at;autoCreateTime:false;index" json:"created_at"`
	URL        string     `gorm:"column:url;type:text" json:"url,omitempty"`
	PropNo     string     `gorm:"column:prop_no;index" json:"prop_no,omitempty"`
}

func (IngestJob) TableName() string { return "ingest_job" }

func (j *IngestJob) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

func (j *IngestJob) BeforeSave(*gorm.DB) error {
	j.CreatedAt = utcPtr(j.CreatedAt)
	return nil
}
