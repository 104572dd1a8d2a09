package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type StageEventInput struct {
	StageName  string     `json:"stage"`
	Status     *string    `json:"status"`
	StartedAt  *time.Time `json:"started_at"`
	PropertyID *string    `json:"property_id"`
}

type RunDetail struct {
	RunRecord
	Stages []*types.StageRun `json:"stages"`
}

// RunService records stage progress and exposes the cooperative cancel flag.
type RunService interface {
	RecordStage(dbc dbctx.Context, runID string, in StageEventInput) (*RunDetail, error)
	RequestCancel(dbc dbctx.Context, runID string) (*RunDetail, error)
	Get(dbc dbctx.Context, runID string) (*RunDetail, error)
}

type runService struct {
	db     *gorm.DB
	log    *logger.Logger
	runs   repos.RunRepo
	stages repos.StageRunRepo
	now    func() time.Time
}

func NewRunService(db *gorm.DB, baseLog *logger.Logger, runs repos.RunRepo, stages repos.StageRunRepo) RunService {
	return &runService{
		db:     db,
		log:    baseLog.With("service", "RunService"),
		runs:   runs,
		stages: stages,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordStage appends the stage row and upserts the run in one transaction.
// The run keeps the earliest started_at of all its stage events.
func (s *runService) RecordStage(dbc dbctx.Context, runID string, in StageEventInput) (*RunDetail, error) {
	runID = strings.TrimSpace(runID)
	stage := strings.TrimSpace(in.StageName)
	if runID == "" {
		return nil, invalid("run_id", "required")
	}
	if stage == "" {
		return nil, invalid("stage", "required")
	}
	now := s.now()
	startedAt := now
	if in.StartedAt != nil && !in.StartedAt.IsZero() {
		startedAt = in.StartedAt.UTC()
	}
	status := trimmedPtr(in.Status)

	err := dbc.DB(s.db).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if _, err := s.stages.Append(inner, &types.StageRun{
			RunID:     runID,
			StageName: stage,
			Status:    status,
			StartedAt: startedAt,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return s.runs.Upsert(inner, &types.Run{
			RunID:      runID,
			PropertyID: trimmedPtr(in.PropertyID),
			Status:     status,
			StartedAt:  &startedAt,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		s.log.Error("record stage failed", "run_id", runID, "stage", stage, "error", err)
		return nil, storageErr("RecordStage", err)
	}
	return s.Get(dbc, runID)
}

func (s *runService) RequestCancel(dbc dbctx.Context, runID string) (*RunDetail, error) {
	ok, err := s.runs.RequestCancel(dbc, runID)
	if err != nil {
		return nil, storageErr("RequestCancel", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.log.Info("run cancel requested", "run_id", runID)
	return s.Get(dbc, runID)
}

func (s *runService) Get(dbc dbctx.Context, runID string) (*RunDetail, error) {
	run, err := s.runs.Get(dbc, runID)
	if err != nil {
		return nil, &QueryFailedError{Op: "GetRun", Err: err}
	}
	if run == nil {
		return nil, ErrNotFound
	}
	stages, err := s.stages.ListByRunID(dbc, runID)
	if err != nil {
		return nil, &QueryFailedError{Op: "GetRunStages", Err: err}
	}
	return &RunDetail{
		RunRecord: RunRecord{Run: run, StatusNormalized: normalizeForEntity("run", run.Status)},
		Stages:    stages,
	}, nil
}
