package feedback

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ModuleRent       = "rent"
	ModuleRefurb     = "refurb"
	ModuleEPC        = "epc"
	ModuleFinancials = "financials"

	KindThumb   = "thumb"
	KindEdit    = "edit"
	KindConfirm = "confirm"

	VoteUp   = "up"
	VoteDown = "down"
)

// Modules is the fixed reporting order.
var Modules = []string{ModuleRent, ModuleRefurb, ModuleEPC, ModuleFinancials}

// Event is an append-only feedback record. Vote only carries meaning for
// thumb events.
type Event struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RunID      string    `gorm:"column:run_id;not null;index" json:"run_id"`
	PropertyID string    `gorm:"column:property_id;not null;index" json:"property_id"`
	Module     string    `gorm:"column:module;not null;index" json:"module"`
	Kind       string    `gorm:"column:kind;not null;index" json:"kind"`
	TargetID   *string   `gorm:"column:target_id;index" json:"target_id,omitempty"`
	TargetKey  *string   `gorm:"column:target_key" json:"target_key,omitempty"`
	Vote       *string   `gorm:"column:vote" json:"vote,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (Event) TableName() string { return "feedback_event" }

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func IsModule(s string) bool {
	for _, m := range Modules {
		if m == s {
			return true
		}
	}
	return false
}

func IsKind(s string) bool {
	return s == KindThumb || s == KindEdit || s == KindConfirm
}
