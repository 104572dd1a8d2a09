package pipeline

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/dberr"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type RunRepo interface {
	Upsert(dbc dbctx.Context, run *types.Run) error
	Get(dbc dbctx.Context, runID string) (*types.Run, error)
	RequestCancel(dbc dbctx.Context, runID string) (bool, error)
	List(dbc dbctx.Context, q ListQuery) ([]*types.Run, error)
	Count(dbc dbctx.Context, q ListQuery) (int64, error)
}

type runRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo {
	return &runRepo{
		db:  db,
		log: baseLog.With("repo", "RunRepo"),
	}
}

var runColumns = listColumns{
	timestamp:  "started_at",
	primaryKey: "run_id",
	search:     []string{"run_id", "property_id"},
	exact: []exactColumn{
		{"run_id", func(q ListQuery) string { return q.RunID }},
		{"property_id", func(q ListQuery) string { return q.PropertyID }},
	},
	status: true,
}

// Upsert inserts the run or, when run_id exists, refreshes status and
// updated_at. started_at keeps the earliest value seen, whatever order the
// events arrive in. A NULL status or property_id never overwrites a known one.
func (r *runRepo) Upsert(dbc dbctx.Context, run *types.Run) error {
	if run == nil || run.RunID == "" {
		return nil
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = time.Now().UTC()
	}
	db := dbc.DB(r.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":      gorm.Expr("COALESCE(excluded.status, pipeline_run.status)"),
			"updated_at":  gorm.Expr("excluded.updated_at"),
			"property_id": gorm.Expr("COALESCE(excluded.property_id, pipeline_run.property_id)"),
			"started_at":  gorm.Expr(earliestStartedAt(db)),
		}),
	}).Create(run).Error
	return dberr.Classify(err)
}

func (r *runRepo) Get(dbc dbctx.Context, runID string) (*types.Run, error) {
	if runID == "" {
		return nil, nil
	}
	var out []*types.Run
	if err := dbc.DB(r.db).Where("run_id = ?", runID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// RequestCancel flags the run; workers observe the flag on their next poll.
func (r *runRepo) RequestCancel(dbc dbctx.Context, runID string) (bool, error) {
	res := dbc.DB(r.db).Model(&types.Run{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"cancel_requested": true,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *runRepo) List(dbc dbctx.Context, q ListQuery) ([]*types.Run, error) {
	out := []*types.Run{}
	tx := q.where(dbc.DB(r.db).Model(&types.Run{}), runColumns)
	if err := q.page(tx, runColumns).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runRepo) Count(dbc dbctx.Context, q ListQuery) (int64, error) {
	var total int64
	tx := q.where(dbc.DB(r.db).Model(&types.Run{}), runColumns)
	if err := tx.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// earliestStartedAt picks the smaller of the stored and incoming started_at,
// ignoring NULLs on either side.
func earliestStartedAt(db *gorm.DB) string {
	if isSQLite(db) {
		return `CASE
			WHEN pipeline_run.started_at IS NULL THEN excluded.started_at
			WHEN excluded.started_at IS NULL THEN pipeline_run.started_at
			WHEN julianday(excluded.started_at) < julianday(pipeline_run.started_at) THEN excluded.started_at
			ELSE pipeline_run.started_at
		END`
	}
	return "LEAST(pipeline_run.started_at, excluded.started_at)"
}
