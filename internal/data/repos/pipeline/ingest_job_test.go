package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/testutil"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
)

func TestIngestJobRepoPaginationIsDisjoint(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewIngestJobRepo(db, testutil.Logger(t))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		testutil.SeedJob(t, ctx, db, &types.IngestJob{
			CreatedAt: testutil.Ptr(base.Add(time.Duration(i%7) * time.Minute)),
			Status:    testutil.Ptr("queued"),
			URL:       fmt.Sprintf("https://listing.example/%d", i),
		})
	}

	dbc := dbctx.Of(ctx)
	first, err := repo.List(dbc, ListQuery{Offset: 0, Limit: 25})
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	second, err := repo.List(dbc, ListQuery{Offset: 25, Limit: 25})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(first) != 25 || len(second) != 15 {
		t.Fatalf("page sizes: want=25/15 got=%d/%d", len(first), len(second))
	}
	seen := map[uuid.UUID]bool{}
	for _, j := range append(first, second...) {
		if seen[j.ID] {
			t.Fatalf("job %s returned on both pages", j.ID)
		}
		seen[j.ID] = true
	}
	total, err := repo.Count(dbc, ListQuery{Offset: 25, Limit: 25})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 40 {
		t.Fatalf("total: want=40 got=%d", total)
	}
}

func TestIngestJobRepoFilters(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewIngestJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Of(ctx)

	day1 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 5, 2, 23, 59, 0, 0, time.UTC)
	day3 := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	done := testutil.SeedJob(t, ctx, db, &types.IngestJob{RunID: testutil.Ptr("run-a"), Status: testutil.Ptr("Completed"), CreatedAt: &day1, BatchLabel: "spring", URL: "https://rightmove.example/abc"})
	succ := testutil.SeedJob(t, ctx, db, &types.IngestJob{RunID: testutil.Ptr("run-b"), Status: testutil.Ptr("success"), CreatedAt: &day2, PropNo: "P-100"})
	nullStatus := testutil.SeedJob(t, ctx, db, &types.IngestJob{RunID: testutil.Ptr("run-c"), CreatedAt: &day3})
	blank := testutil.SeedJob(t, ctx, db, &types.IngestJob{Status: testutil.Ptr(" "), BatchLabel: "Spring_2"})
	odd := testutil.SeedJob(t, ctx, db, &types.IngestJob{Status: testutil.Ptr("stalled"), CreatedAt: &day1})

	ids := func(jobs []*types.IngestJob) map[uuid.UUID]bool {
		out := map[uuid.UUID]bool{}
		for _, j := range jobs {
			out[j.ID] = true
		}
		return out
	}

	cases := []struct {
		name string
		q    ListQuery
		want []uuid.UUID
	}{
		{"success spellings", ListQuery{StatusIn: []string{"completed", "success"}}, []uuid.UUID{done.ID, succ.ID}},
		{"queued matches null and blank", ListQuery{StatusIn: []string{"queued"}, StatusMatchNull: true}, []uuid.UUID{nullStatus.ID, blank.ID}},
		{"unknown raw value", ListQuery{StatusIn: []string{"stalled"}}, []uuid.UUID{odd.ID}},
		{"date range inclusive of to-day", ListQuery{From: testutil.Ptr(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)), ToExclusive: testutil.Ptr(day3)}, []uuid.UUID{succ.ID}},
		{"run id", ListQuery{RunID: "run-c"}, []uuid.UUID{nullStatus.ID}},
		{"search is case-insensitive", ListQuery{Q: "RIGHTMOVE"}, []uuid.UUID{done.ID}},
		{"search treats underscore literally", ListQuery{Q: "g_2"}, []uuid.UUID{blank.ID}},
		{"search prop_no", ListQuery{Q: "p-100"}, []uuid.UUID{succ.ID}},
		{"and of filters", ListQuery{RunID: "run-a", StatusIn: []string{"failed"}}, nil},
	}
	for _, tc := range cases {
		got, err := repo.List(dbc, tc.q)
		if err != nil {
			t.Fatalf("%s: List: %v", tc.name, err)
		}
		gotIDs := ids(got)
		if len(gotIDs) != len(tc.want) {
			t.Fatalf("%s: want %d rows got %d", tc.name, len(tc.want), len(gotIDs))
		}
		for _, id := range tc.want {
			if !gotIDs[id] {
				t.Fatalf("%s: missing %s", tc.name, id)
			}
		}
	}
}

func TestIngestJobRepoOrdersNullTimestampsLast(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewIngestJobRepo(db, testutil.Logger(t))

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	noTime := testutil.SeedJob(t, ctx, db, &types.IngestJob{})
	a := testutil.SeedJob(t, ctx, db, &types.IngestJob{CreatedAt: &older})
	b := testutil.SeedJob(t, ctx, db, &types.IngestJob{CreatedAt: &newer})

	got, err := repo.List(dbctx.Of(ctx), ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 || got[0].ID != b.ID || got[1].ID != a.ID || got[2].ID != noTime.ID {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestIngestJobRepoDateRangeComparesInstants(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewIngestJobRepo(db, testutil.Logger(t))

	seed := func(url string, at time.Time) {
		testutil.SeedJob(t, ctx, db, &types.IngestJob{CreatedAt: &at, URL: url})
	}
	seed("a", time.Date(2024, 6, 2, 23, 59, 59, 0, time.UTC))
	seed("b", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	seed("c", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	seed("d", time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC))
	seed("e", time.Date(2024, 6, 3, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)))

	// Rows written by the ingestion process keep whatever offset it used.
	raw := func(url, createdAt string) {
		if err := db.Exec("INSERT INTO ingest_job (id, created_at, url, batch_label, prop_no) VALUES (?, ?, ?, '', '')", uuid.NewString(), createdAt, url).Error; err != nil {
			t.Fatalf("insert %s: %v", url, err)
		}
	}
	raw("f", "2024-06-03 01:00:00+02:00")
	raw("g", "2024-06-01 01:30:00+02:00")

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	q := ListQuery{From: &from, ToExclusive: &to, Limit: 25}
	dbc := dbctx.Of(ctx)

	total, err := repo.Count(dbc, q)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 4 {
		t.Fatalf("count: want=4 got=%d", total)
	}
	jobs, err := repo.List(dbc, q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := map[string]bool{}
	for _, j := range jobs {
		got[j.URL] = true
	}
	for _, want := range []string{"a", "c", "e", "f"} {
		if !got[want] {
			t.Fatalf("job %s missing from range: %v", want, got)
		}
	}
	if len(jobs) != 4 || jobs[0].URL != "a" || jobs[3].URL != "c" {
		urls := make([]string, 0, len(jobs))
		for _, j := range jobs {
			urls = append(urls, j.URL)
		}
		t.Fatalf("order by instant: %v", urls)
	}
}

func TestIngestJobBeforeSaveStoresUTC(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 3, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	job := testutil.SeedJob(t, ctx, db, &types.IngestJob{CreatedAt: &at, URL: "zoned"})

	if job.CreatedAt.Location() != time.UTC || !job.CreatedAt.Equal(at) {
		t.Fatalf("created_at: %v", job.CreatedAt)
	}
}
