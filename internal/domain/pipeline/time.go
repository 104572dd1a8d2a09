package pipeline

import "time"

// Timestamps are stored in UTC so that text-backed drivers compare them in
// instant order.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
