package pipeline

import (
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/gorm"

	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type StageRunRepo interface {
	Append(dbc dbctx.Context, stage *types.StageRun) (*types.StageRun, error)
	ListByRunID(dbc dbctx.Context, runID string) ([]*types.StageRun, error)
	// MinStartedAtByRunIDs returns the earliest stage start per run. Runs with
	// no stage rows are absent from the map.
	MinStartedAtByRunIDs(dbc dbctx.Context, runIDs []string) (map[string]time.Time, error)
}

type stageRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageRunRepo(db *gorm.DB, baseLog *logger.Logger) StageRunRepo {
	return &stageRunRepo{
		db:  db,
		log: baseLog.With("repo", "StageRunRepo"),
	}
}

func (r *stageRunRepo) Append(dbc dbctx.Context, stage *types.StageRun) (*types.StageRun, error) {
	if stage == nil {
		return nil, nil
	}
	if stage.CreatedAt.IsZero() {
		stage.CreatedAt = time.Now().UTC()
	}
	if stage.StartedAt.IsZero() {
		stage.StartedAt = stage.CreatedAt
	}
	if err := dbc.DB(r.db).Create(stage).Error; err != nil {
		return nil, err
	}
	return stage, nil
}

func (r *stageRunRepo) ListByRunID(dbc dbctx.Context, runID string) ([]*types.StageRun, error) {
	out := []*types.StageRun{}
	if runID == "" {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("run_id = ?", runID).
		Order("started_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *stageRunRepo) MinStartedAtByRunIDs(dbc dbctx.Context, runIDs []string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	if len(runIDs) == 0 {
		return out, nil
	}
	type row struct {
		RunID        string
		MinStartedAt scanTime
	}
	var rows []row
	if err := dbc.DB(r.db).
		Model(&types.StageRun{}).
		Select("run_id, MIN(started_at) AS min_started_at").
		Where("run_id IN ?", runIDs).
		Group("run_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, rr := range rows {
		if rr.MinStartedAt.Valid {
			out[rr.RunID] = rr.MinStartedAt.Time
		}
	}
	return out, nil
}

// scanTime accepts aggregate timestamps from drivers that return them as text.
type scanTime struct {
	Time  time.Time
	Valid bool
}

var scanTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (s *scanTime) Scan(v interface{}) error {
	switch t := v.(type) {
	case nil:
		*s = scanTime{}
		return nil
	case time.Time:
		*s = scanTime{Time: t, Valid: true}
		return nil
	case []byte:
		return s.parse(string(t))
	case string:
		return s.parse(t)
	default:
		return fmt.Errorf("scanTime: unsupported type %T", v)
	}
}

func (s scanTime) Value() (driver.Value, error) {
	if !s.Valid {
		return nil, nil
	}
	return s.Time, nil
}

func (s *scanTime) parse(raw string) error {
	for _, layout := range scanTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			*s = scanTime{Time: t, Valid: true}
			return nil
		}
	}
	return fmt.Errorf("scanTime: cannot parse %q", raw)
}
