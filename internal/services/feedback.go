package services

import (
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/feedback"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/observability"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type RecordFeedbackInput struct {
	RunID      string  `json:"run_id"`
	PropertyID string  `json:"property_id"`
	Module     string  `json:"module"`
	Kind       string  `json:"kind"`
	TargetID   *string `json:"target_id"`
	TargetKey  *string `json:"target_key"`
	Vote       *string `json:"vote"`
}

type FeedbackService interface {
	// Record appends one event and returns the property's refreshed snapshot.
	Record(dbc dbctx.Context, in RecordFeedbackInput) (*Snapshot, error)
	Aggregate(dbc dbctx.Context, propertyID *string, windowDays int) (*Snapshot, error)
}

type feedbackService struct {
	log           *logger.Logger
	events        repos.FeedbackEventRepo
	defaultWindow int
	now           func() time.Time
}

func NewFeedbackService(baseLog *logger.Logger, events repos.FeedbackEventRepo, defaultWindow int) FeedbackService {
	return &feedbackService{
		log:           baseLog.With("service", "FeedbackService"),
		events:        events,
		defaultWindow: ClampWindowDays(defaultWindow),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *feedbackService) Record(dbc dbctx.Context, in RecordFeedbackInput) (*Snapshot, error) {
	ev, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	ev.CreatedAt = s.now()
	if _, err := s.events.Create(dbc, ev); err != nil {
		s.log.Error("record feedback failed", "run_id", ev.RunID, "module", ev.Module, "error", err)
		return nil, storageErr("RecordFeedback", err)
	}
	observability.Current().IncFeedbackEvent(ev.Module, ev.Kind)
	s.log.Debug("feedback recorded", "run_id", ev.RunID, "property_id", ev.PropertyID, "module", ev.Module, "kind", ev.Kind)

	propertyID := ev.PropertyID
	return s.Aggregate(dbc, &propertyID, s.defaultWindow)
}

func (s *feedbackService) validate(in RecordFeedbackInput) (*types.FeedbackEvent, error) {
	runID := strings.TrimSpace(in.RunID)
	propertyID := strings.TrimSpace(in.PropertyID)
	module := strings.ToLower(strings.TrimSpace(in.Module))
	kind := strings.ToLower(strings.TrimSpace(in.Kind))

	if runID == "" {
		return nil, invalid("run_id", "required")
	}
	if propertyID == "" {
		return nil, invalid("property_id", "required")
	}
	if !feedback.IsModule(module) {
		return nil, invalid("module", "must be one of rent, refurb, epc, financials")
	}
	if !feedback.IsKind(kind) {
		return nil, invalid("kind", "must be one of thumb, edit, confirm")
	}

	var vote *string
	if in.Vote != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Vote))
		if v != "" {
			if v != feedback.VoteUp && v != feedback.VoteDown {
				return nil, invalid("vote", "must be up or down")
			}
			vote = &v
		}
	}
	if kind == feedback.KindThumb && vote == nil {
		return nil, invalid("vote", "required for thumb feedback")
	}

	return &types.FeedbackEvent{
		RunID:      runID,
		PropertyID: propertyID,
		Module:     module,
		Kind:       kind,
		TargetID:   trimmedPtr(in.TargetID),
		TargetKey:  trimmedPtr(in.TargetKey),
		Vote:       vote,
	}, nil
}

func (s *feedbackService) Aggregate(dbc dbctx.Context, propertyID *string, windowDays int) (*Snapshot, error) {
	if windowDays < 1 {
		windowDays = s.defaultWindow
	}
	windowDays = ClampWindowDays(windowDays)
	now := s.now()
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	ctx, span := observability.StartSpan(dbc.Ctx, "feedback.aggregate", attribute.Int("window_days", windowDays))
	events, err := s.events.ListThumbsSince(withCtx(dbc, ctx), since, trimmedPtr(propertyID))
	observability.EndSpan(span, err)
	if err != nil {
		s.log.Error("load feedback failed", "error", err)
		return nil, &QueryFailedError{Op: "AggregateFeedback", Err: err}
	}
	snap := AggregateApproval(events, now, windowDays, feedback.ModuleRefurb)
	return &snap, nil
}

func trimmedPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
