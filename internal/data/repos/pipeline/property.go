package pipeline

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/dberr"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type PropertyRepo interface {
	Upsert(dbc dbctx.Context, p *types.Property) error
	Get(dbc dbctx.Context, propertyID string) (*types.Property, error)
	List(dbc dbctx.Context, q ListQuery) ([]*types.Property, error)
	Count(dbc dbctx.Context, q ListQuery) (int64, error)
}

type propertyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPropertyRepo(db *gorm.DB, baseLog *logger.Logger) PropertyRepo {
	return &propertyRepo{
		db:  db,
		log: baseLog.With("repo", "PropertyRepo"),
	}
}

// Properties only honour property_id, run_id and q.
var propertyColumns = listColumns{
	timestamp:  "created_at",
	primaryKey: "property_id",
	search:     []string{"address", "title", "postcode"},
	exact: []exactColumn{
		{"property_id", func(q ListQuery) string { return q.PropertyID }},
		{"run_id", func(q ListQuery) string { return q.RunID }},
	},
}

func (r *propertyRepo) Upsert(dbc dbctx.Context, p *types.Property) error {
	if p == nil || p.PropertyID == "" {
		return nil
	}
	err := dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "property_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "title", "address", "postcode",
			"asking_price", "estimated_rent", "refurb_total",
			"rent_mape", "refurb_mape", "financials",
		}),
	}).Create(p).Error
	return dberr.Classify(err)
}

func (r *propertyRepo) Get(dbc dbctx.Context, propertyID string) (*types.Property, error) {
	if propertyID == "" {
		return nil, nil
	}
	var out []*types.Property
	if err := dbc.DB(r.db).Where("property_id = ?", propertyID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *propertyRepo) List(dbc dbctx.Context, q ListQuery) ([]*types.Property, error) {
	out := []*types.Property{}
	tx := q.where(dbc.DB(r.db).Model(&types.Property{}), propertyColumns)
	if err := q.page(tx, propertyColumns).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *propertyRepo) Count(dbc dbctx.Context, q ListQuery) (int64, error) {
	var total int64
	tx := q.where(dbc.DB(r.db).Model(&types.Property{}), propertyColumns)
	if err := tx.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
