package pipeline

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Property may be re-analysed by several runs; RunID points at the latest one.
// The *MAPE fields are filled in by the offline accuracy job.
type Property struct {
	PropertyID    string         `gorm:"column:property_id;primaryKey" json:"property_id"`
	RunID         *string        `gorm:"column:run_id;index" json:"run_id"`
	Title         string         `gorm:"column:title" json:"title,omitempty"`
	Address       string         `gorm:"column:address" json:"address,omitempty"`
	Postcode      string         `gorm:"column:postcode;index" json:"postcode,omitempty"`
	AskingPrice   *float64       `gorm:"column:asking_price" json:"asking_price,omitempty"`
	EstimatedRent *float64       `gorm:"column:estimated_rent" json:"estimated_rent,omitempty"`
	RefurbTotal   *float64       `gorm:"column:refurb_total" json:"refurb_total,omitempty"`
	RentMAPE      *float64       `gorm:"column:rent_mape" json:"rent_mape,omitempty"`
	RefurbMAPE    *float64       `gorm:"column:refurb_mape" json:"refurb_mape,omitempty"`
	Financials    datatypes.JSON `gorm:"column:financials" json:"financials,omitempty"`
	CreatedAt     *time.Time     `gorm:"column:created_at;autoCreateTime:false;index" json:"created_at"`
}

func (Property) TableName() string { return "property" }

func (p *Property) BeforeSave(*gorm.DB) error {
	p.CreatedAt = utcPtr(p.CreatedAt)
	return nil
}
