package pipeline

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/dberr"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type IngestJobRepo interface {
	Create(dbc dbctx.Context, jobs []*types.IngestJob) ([]*types.IngestJob, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.IngestJob, error)
	List(dbc dbctx.Context, q ListQuery) ([]*types.IngestJob, error)
	Count(dbc dbctx.Context, q ListQuery) (int64, error)
}

type ingestJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestJobRepo(db *gorm.DB, baseLog *logger.Logger) IngestJobRepo {
	return &ingestJobRepo{
		db:  db,
		log: baseLog.With("repo", "IngestJobRepo"),
	}
}

var ingestJobColumns = listColumns{
	timestamp:  "created_at",
	primaryKey: "id",
	search:     []string{"url", "batch_label", "prop_no"},
	exact: []exactColumn{
		{"run_id", func(q ListQuery) string { return q.RunID }},
		{"property_id", func(q ListQuery) string { return q.PropertyID }},
		{"prop_no", func(q ListQuery) string { return q.PropNo }},
		{"batch_label", func(q ListQuery) string { return q.BatchLabel }},
	},
	status: true,
}

func (r *ingestJobRepo) Create(dbc dbctx.Context, jobs []*types.IngestJob) ([]*types.IngestJob, error) {
	if len(jobs) == 0 {
		return []*types.IngestJob{}, nil
	}
	if err := dbc.DB(r.db).Create(&jobs).Error; err != nil {
		return nil, dberr.Classify(err)
	}
	return jobs, nil
}

func (r *ingestJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.IngestJob, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.IngestJob
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *ingestJobRepo) List(dbc dbctx.Context, q ListQuery) ([]*types.IngestJob, error) {
	out := []*types.IngestJob{}
	tx := q.where(dbc.DB(r.db).Model(&types.IngestJob{}), ingestJobColumns)
	if err := q.page(tx, ingestJobColumns).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ingestJobRepo) Count(dbc dbctx.Context, q ListQuery) (int64, error) {
	var total int64
	tx := q.where(dbc.DB(r.db).Model(&types.IngestJob{}), ingestJobColumns)
	if err := tx.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
