package services

import (
	"context"
	"testing"
	"time"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/testutil"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
)

func TestWithLatencyReturnsNegativeMinimum(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	joiner := NewLatencyJoiner(log, repos.NewStageRunRepo(db, log))

	t0 := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	testutil.SeedStage(t, ctx, db, "run-skew", "scrape", t0.Add(5*time.Second))
	testutil.SeedStage(t, ctx, db, "run-skew", "rent", t0.Add(2*time.Second))
	testutil.SeedStage(t, ctx, db, "run-skew", "refurb", t0.Add(-1*time.Second))

	job := &types.IngestJob{RunID: testutil.Ptr("run-skew"), CreatedAt: &t0}
	got, err := joiner.WithLatency(dbctx.Of(ctx), job)
	if err != nil {
		t.Fatalf("WithLatency: %v", err)
	}
	if got == nil || *got != -1 {
		t.Fatalf("latency: want -1 got %v", got)
	}
}

func TestWithLatencyNullCases(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	joiner := NewLatencyJoiner(log, repos.NewStageRunRepo(db, log))

	t0 := time.Now().UTC()
	cases := []*types.IngestJob{
		{RunID: testutil.Ptr("run-empty"), CreatedAt: &t0},
		{RunID: nil, CreatedAt: &t0},
		{RunID: testutil.Ptr("run-empty"), CreatedAt: nil},
	}
	for i, job := range cases {
		got, err := joiner.WithLatency(dbctx.Of(ctx), job)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if got != nil {
			t.Fatalf("case %d: expected null latency, got %v", i, *got)
		}
	}
}

func TestEnrichBatchesAndDegrades(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)

	t0 := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	testutil.SeedStage(t, ctx, db, "run-a", "scrape", t0.Add(30*time.Second))
	jobs := []*types.IngestJob{
		{RunID: testutil.Ptr("run-a"), CreatedAt: &t0, Status: testutil.Ptr("completed")},
		{RunID: testutil.Ptr("run-a"), CreatedAt: testutil.Ptr(t0.Add(10 * time.Second))},
		{RunID: testutil.Ptr("run-b"), CreatedAt: &t0, Status: testutil.Ptr("weird")},
	}

	ok := NewLatencyJoiner(log, repos.NewStageRunRepo(db, log)).Enrich(dbctx.Of(ctx), jobs)
	if len(ok) != 3 {
		t.Fatalf("records: %d", len(ok))
	}
	if ok[0].HandoffLatencySec == nil || *ok[0].HandoffLatencySec != 30 {
		t.Fatalf("job 0 latency: %v", ok[0].HandoffLatencySec)
	}
	if ok[1].HandoffLatencySec == nil || *ok[1].HandoffLatencySec != 20 {
		t.Fatalf("job 1 latency: %v", ok[1].HandoffLatencySec)
	}
	if ok[2].HandoffLatencySec != nil {
		t.Fatalf("job 2 should be null")
	}
	if ok[0].StatusNormalized != "success" || ok[1].StatusNormalized != "queued" || ok[2].StatusNormalized.Known() {
		t.Fatalf("normalized statuses: %q %q %q", ok[0].StatusNormalized, ok[1].StatusNormalized, ok[2].StatusNormalized)
	}

	degraded := NewLatencyJoiner(log, failingStageRepo{}).Enrich(dbctx.Of(ctx), jobs)
	if len(degraded) != 3 {
		t.Fatalf("degraded page must keep every record, got %d", len(degraded))
	}
	for i, r := range degraded {
		if r.HandoffLatencySec != nil {
			t.Fatalf("record %d: expected null latency after lookup failure", i)
		}
	}
}
