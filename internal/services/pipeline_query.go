package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"go.opentelemetry.io/otel/attribute"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/normalization"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/observability"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type JobRecord struct {
	*types.IngestJob
	StatusNormalized  normalization.Status `json:"status_normalized"`
	HandoffLatencySec *float64             `json:"handoff_latency_sec"`
}

type RunRecord struct {
	*types.Run
	StatusNormalized normalization.Status `json:"status_normalized"`
}

type Page[T any] struct {
	Items []T
	Total int64
}

// PipelineQueryService serves the bounded, filtered dashboard reads.
type PipelineQueryService interface {
	ListJobs(dbc dbctx.Context, f Filter) (Page[*JobRecord], error)
	ListRuns(dbc dbctx.Context, f Filter) (Page[*RunRecord], error)
	ListProperties(dbc dbctx.Context, f Filter) (Page[*types.Property], error)
}

type pipelineQueryService struct {
	log        *logger.Logger
	jobs       repos.IngestJobRepo
	runs       repos.RunRepo
	properties repos.PropertyRepo
	latency    LatencyJoiner
}

func NewPipelineQueryService(
	baseLog *logger.Logger,
	jobs repos.IngestJobRepo,
	runs repos.RunRepo,
	properties repos.PropertyRepo,
	latency LatencyJoiner,
) PipelineQueryService {
	return &pipelineQueryService{
		log:        baseLog.With("service", "PipelineQueryService"),
		jobs:       jobs,
		runs:       runs,
		properties: properties,
		latency:    latency,
	}
}

func (s *pipelineQueryService) ListJobs(dbc dbctx.Context, f Filter) (Page[*JobRecord], error) {
	q := f.listQuery()
	rows, total, err := listAndCount(dbc, "jobs", q, s.jobs.List, s.jobs.Count)
	if err != nil {
		s.log.Error("list jobs failed", "error", err)
		return Page[*JobRecord]{}, &QueryFailedError{Op: "ListJobs", Err: err}
	}
	return Page[*JobRecord]{Items: s.latency.Enrich(dbc, rows), Total: total}, nil
}

func (s *pipelineQueryService) ListRuns(dbc dbctx.Context, f Filter) (Page[*RunRecord], error) {
	q := f.listQuery()
	rows, total, err := listAndCount(dbc, "runs", q, s.runs.List, s.runs.Count)
	if err != nil {
		s.log.Error("list runs failed", "error", err)
		return Page[*RunRecord]{}, &QueryFailedError{Op: "ListRuns", Err: err}
	}
	items := make([]*RunRecord, 0, len(rows))
	for _, r := range rows {
		items = append(items, &RunRecord{Run: r, StatusNormalized: normalizeForEntity("run", r.Status)})
	}
	return Page[*RunRecord]{Items: items, Total: total}, nil
}

func (s *pipelineQueryService) ListProperties(dbc dbctx.Context, f Filter) (Page[*types.Property], error) {
	q := f.propertyQuery()
	rows, total, err := listAndCount(dbc, "properties", q, s.properties.List, s.properties.Count)
	if err != nil {
		s.log.Error("list properties failed", "error", err)
		return Page[*types.Property]{}, &QueryFailedError{Op: "ListProperties", Err: err}
	}
	return Page[*types.Property]{Items: rows, Total: total}, nil
}

// listAndCount runs the page and the total concurrently. Both observe the
// same filter so the total is the pre-pagination match count.
func listAndCount[T any](
	dbc dbctx.Context,
	entity string,
	q repos.ListQuery,
	list func(dbctx.Context, repos.ListQuery) ([]T, error),
	count func(dbctx.Context, repos.ListQuery) (int64, error),
) ([]T, int64, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(dbc.Ctx, "pipeline.list",
		attribute.String("entity", entity),
		attribute.Int("offset", q.Offset),
		attribute.Int("limit", q.Limit),
	)

	var (
		rows  []T
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	if dbc.Tx != nil {
		// a transaction is bound to one connection.
		g.SetLimit(1)
	}
	g.Go(func() error {
		var err error
		rows, err = list(withCtx(dbc, gctx), q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = count(withCtx(dbc, gctx), q)
		return err
	})
	err := g.Wait()

	observability.EndSpan(span, err)
	observability.Current().ObserveQuery(entity, err, time.Since(start))
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// withCtx swaps the request context. A caller-supplied transaction is kept.
func withCtx(dbc dbctx.Context, ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx, Tx: dbc.Tx}
}

func normalizeForEntity(entity string, raw *string) normalization.Status {
	st := normalization.NormalizeStatus(raw)
	if !st.Known() {
		observability.Current().IncUnknownStatus(entity, st.Raw())
	}
	return st
}
