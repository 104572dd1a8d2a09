// Package notify forwards accepted missing-room uploads to downstream
// processing. Every sink is best-effort: the upload is already committed by
// the time a sink runs.
package notify

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/observability"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

// Sink delivers one event to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev uploads.UploadedEvent) error
}

// Fanout delivers to every sink concurrently and joins the failures.
type Fanout struct {
	log   *logger.Logger
	sinks []Sink
}

func NewFanout(baseLog *logger.Logger, sinks ...Sink) *Fanout {
	live := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return &Fanout{log: baseLog.With("service", "UploadNotifier"), sinks: live}
}

func (f *Fanout) Sinks() []string {
	out := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		out = append(out, s.Name())
	}
	return out
}

func (f *Fanout) MissingRoomUploaded(ctx context.Context, ev uploads.UploadedEvent) error {
	if f == nil || len(f.sinks) == 0 {
		return nil
	}
	errs := make([]error, len(f.sinks))
	var g errgroup.Group
	for i, s := range f.sinks {
		g.Go(func() error {
			err := s.Send(ctx, ev)
			outcome := "ok"
			if err != nil {
				outcome = "error"
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				f.log.Warn("notify sink failed", "sink", s.Name(), "request_id", ev.RequestID, "error", err)
			}
			observability.Current().IncNotifyDispatch(s.Name(), outcome)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
