package services

import (
	"time"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/observability"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

// LatencyJoiner computes handoff latency: seconds from job creation to the
// earliest stage start of its run. Negative values are clock skew and are
// returned unchanged.
type LatencyJoiner interface {
	WithLatency(dbc dbctx.Context, job *types.IngestJob) (*float64, error)
	Enrich(dbc dbctx.Context, jobs []*types.IngestJob) []*JobRecord
}

type latencyJoiner struct {
	log    *logger.Logger
	stages repos.StageRunRepo
}

func NewLatencyJoiner(baseLog *logger.Logger, stages repos.StageRunRepo) LatencyJoiner {
	return &latencyJoiner{
		log:    baseLog.With("service", "LatencyJoiner"),
		stages: stages,
	}
}

func (j *latencyJoiner) WithLatency(dbc dbctx.Context, job *types.IngestJob) (*float64, error) {
	if job == nil || job.RunID == nil || *job.RunID == "" || job.CreatedAt == nil {
		return nil, nil
	}
	mins, err := j.stages.MinStartedAtByRunIDs(dbc, []string{*job.RunID})
	if err != nil {
		return nil, &QueryFailedError{Op: "WithLatency", Err: err}
	}
	return handoffLatency(job, mins), nil
}

// Enrich resolves latency for a whole page with one grouped query. If that
// query fails every record gets a null latency instead of failing the page.
func (j *latencyJoiner) Enrich(dbc dbctx.Context, jobs []*types.IngestJob) []*JobRecord {
	out := make([]*JobRecord, 0, len(jobs))
	runIDs := make([]string, 0, len(jobs))
	seen := map[string]bool{}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if job.RunID != nil && *job.RunID != "" && job.CreatedAt != nil && !seen[*job.RunID] {
			seen[*job.RunID] = true
			runIDs = append(runIDs, *job.RunID)
		}
	}

	var mins map[string]time.Time
	if len(runIDs) > 0 {
		var err error
		mins, err = j.stages.MinStartedAtByRunIDs(dbc, runIDs)
		if err != nil {
			j.log.Warn("stage lookup failed; serving null latency", "runs", len(runIDs), "error", err)
			observability.Current().IncLatencyDegraded()
			mins = nil
		}
	}

	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, &JobRecord{
			IngestJob:         job,
			StatusNormalized:  normalizeForEntity("job", job.Status),
			HandoffLatencySec: handoffLatency(job, mins),
		})
	}
	return out
}

func handoffLatency(job *types.IngestJob, mins map[string]time.Time) *float64 {
	if job.RunID == nil || job.CreatedAt == nil || mins == nil {
		return nil
	}
	first, ok := mins[*job.RunID]
	if !ok {
		return nil
	}
	sec := first.Sub(*job.CreatedAt).Seconds()
	return &sec
}
