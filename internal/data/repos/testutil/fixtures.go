package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
)

func Ptr[T any](v T) *T { return &v }

func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, job *types.IngestJob) *types.IngestJob {
	tb.Helper()
	if err := tx.WithContext(ctx).Create(job).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return job
}

func SeedRun(tb testing.TB, ctx context.Context, tx *gorm.DB, runID string, status *string, startedAt *time.Time) *types.Run {
	tb.Helper()
	r := &types.Run{RunID: runID, Status: status, StartedAt: startedAt, UpdatedAt: time.Now().UTC()}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed run: %v", err)
	}
	return r
}

func SeedStage(tb testing.TB, ctx context.Context, tx *gorm.DB, runID, stage string, startedAt time.Time) *types.StageRun {
	tb.Helper()
	s := &types.StageRun{RunID: runID, StageName: stage, StartedAt: startedAt, CreatedAt: startedAt}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed stage: %v", err)
	}
	return s
}

func SeedProperty(tb testing.TB, ctx context.Context, tx *gorm.DB, p *types.Property) *types.Property {
	tb.Helper()
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed property: %v", err)
	}
	return p
}

func SeedMissingRoomRequest(tb testing.TB, ctx context.Context, tx *gorm.DB, propertyID, roomKey string, token *string, expiresAt *time.Time, status uploads.RequestStatus) *types.MissingRoomRequest {
	tb.Helper()
	req := &types.MissingRoomRequest{
		PropertyID:     propertyID,
		RoomKey:        roomKey,
		RoomLabel:      roomKey,
		Token:          token,
		TokenExpiresAt: expiresAt,
		Status:         status,
	}
	if err := tx.WithContext(ctx).Create(req).Error; err != nil {
		tb.Fatalf("seed missing room request: %v", err)
	}
	return req
}
