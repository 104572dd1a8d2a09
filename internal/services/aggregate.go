package services

import (
	"strings"
	"time"

	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/feedback"
)

const (
	DefaultWindowDays = 90
	MaxWindowDays     = 365
)

// Approval is a vote tally. Rate is nil when there are no votes so that
// "no data" never reads as 0%.
type Approval struct {
	N    int      `json:"n"`
	Up   int      `json:"up"`
	Down int      `json:"down"`
	Rate *float64 `json:"approval"`
}

func (a *Approval) add(vote string) {
	switch vote {
	case feedback.VoteUp:
		a.Up++
	case feedback.VoteDown:
		a.Down++
	default:
		return
	}
	a.N++
	r := float64(a.Up) / float64(a.N)
	a.Rate = &r
}

type TargetApproval struct {
	Approval
	Module string `json:"module"`
	Label  string `json:"label,omitempty"`

	labelAt time.Time
}

type Snapshot struct {
	WindowDays     int                        `json:"windowDays"`
	ModuleApproval map[string]Approval        `json:"moduleApproval"`
	TargetApproval map[string]*TargetApproval `json:"targetApproval"`
}

func ClampWindowDays(days int) int {
	switch {
	case days < 1:
		return DefaultWindowDays
	case days > MaxWindowDays:
		return MaxWindowDays
	default:
		return days
	}
}

// AggregateApproval tallies thumb votes inside the trailing window ending at
// now. Per-target tallies are kept for events of targetModule; an empty
// targetModule keeps targets of every module. The result depends only on the
// event set, never on its order.
func AggregateApproval(events []*types.FeedbackEvent, now time.Time, windowDays int, targetModule string) Snapshot {
	windowDays = ClampWindowDays(windowDays)
	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	snap := Snapshot{
		WindowDays:     windowDays,
		ModuleApproval: make(map[string]Approval, len(feedback.Modules)),
		TargetApproval: map[string]*TargetApproval{},
	}
	for _, m := range feedback.Modules {
		snap.ModuleApproval[m] = Approval{}
	}

	for _, ev := range events {
		if ev == nil || ev.Kind != feedback.KindThumb || ev.CreatedAt.Before(cutoff) {
			continue
		}
		if !feedback.IsModule(ev.Module) || ev.Vote == nil {
			continue
		}
		vote := strings.ToLower(strings.TrimSpace(*ev.Vote))
		if vote != feedback.VoteUp && vote != feedback.VoteDown {
			continue
		}

		ma := snap.ModuleApproval[ev.Module]
		ma.add(vote)
		snap.ModuleApproval[ev.Module] = ma

		if ev.TargetID == nil || *ev.TargetID == "" {
			continue
		}
		if targetModule != "" && ev.Module != targetModule {
			continue
		}
		ta, ok := snap.TargetApproval[*ev.TargetID]
		if !ok {
			ta = &TargetApproval{Module: ev.Module}
			snap.TargetApproval[*ev.TargetID] = ta
		}
		ta.add(vote)
		if ev.TargetKey != nil && *ev.TargetKey != "" {
			// newest label wins; equal timestamps fall back to the larger string.
			if ta.Label == "" || ev.CreatedAt.After(ta.labelAt) ||
				(ev.CreatedAt.Equal(ta.labelAt) && *ev.TargetKey > ta.Label) {
				ta.Label = *ev.TargetKey
				ta.labelAt = ev.CreatedAt
			}
		}
	}
	return snap
}
