package feedback

import (
	"time"

	"gorm.io/gorm"

	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/feedback"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type EventRepo interface {
	Create(dbc dbctx.Context, ev *types.FeedbackEvent) (*types.FeedbackEvent, error)
	// ListThumbsSince returns thumb events created at or after since,
	// optionally scoped to one property.
	ListThumbsSince(dbc dbctx.Context, since time.Time, propertyID *string) ([]*types.FeedbackEvent, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{
		db:  db,
		log: baseLog.With("repo", "FeedbackEventRepo"),
	}
}

func (r *eventRepo) Create(dbc dbctx.Context, ev *types.FeedbackEvent) (*types.FeedbackEvent, error) {
	if ev == nil {
		return nil, nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := dbc.DB(r.db).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *eventRepo) ListThumbsSince(dbc dbctx.Context, since time.Time, propertyID *string) ([]*types.FeedbackEvent, error) {
	out := []*types.FeedbackEvent{}
	q := dbc.DB(r.db).
		Where("kind = ?", feedback.KindThumb).
		Where("created_at >= ?", since)
	if propertyID != nil && *propertyID != "" {
		q = q.Where("property_id = ?", *propertyID)
	}
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
