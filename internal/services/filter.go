package services

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/normalization"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100

	dateLayout = "2006-01-02"
)

// Filter is the parsed form of a dashboard query string. From and To are
// day-granular UTC midnights; To is inclusive (see ToExclusive).
type Filter struct {
	From       *time.Time
	To         *time.Time
	Status     *normalization.Status
	RunID      string
	PropertyID string
	PropNo     string
	BatchLabel string
	Q          string
	Offset     int
	Limit      int
}

// ToExclusive is the first instant after the To day.
func (f Filter) ToExclusive() *time.Time {
	if f.To == nil {
		return nil
	}
	t := f.To.AddDate(0, 0, 1)
	return &t
}

// ParseFilter validates and normalizes a query map. Only offset, limit and the
// date keys can fail; everything else is a permissive string.
func ParseFilter(query map[string]string) (Filter, error) {
	get := func(k string) string { return strings.TrimSpace(query[k]) }

	f := Filter{
		RunID:      get("run_id"),
		PropertyID: get("property_id"),
		PropNo:     get("prop_no"),
		BatchLabel: get("batch_label"),
		Q:          get("q"),
		Offset:     0,
		Limit:      DefaultLimit,
	}

	if raw := get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, invalid("offset", "must be an integer")
		}
		if n < 0 {
			n = 0
		}
		f.Offset = n
	}
	if raw := get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, invalid("limit", "must be an integer")
		}
		f.Limit = clampLimit(n)
	}

	var err error
	if f.From, err = parseDay("from", get("from")); err != nil {
		return Filter{}, err
	}
	if f.To, err = parseDay("to", get("to")); err != nil {
		return Filter{}, err
	}

	if raw := get("status"); raw != "" {
		st := normalization.NormalizeStatusString(raw)
		f.Status = &st
	}
	return f, nil
}

// FilterFromURLValues adapts url.Values; the first value of each key wins.
func FilterFromURLValues(v url.Values) (Filter, error) {
	m := make(map[string]string, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			m[k] = vals[0]
		}
	}
	return ParseFilter(m)
}

func clampLimit(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

func parseDay(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, raw)
		if tsErr != nil {
			return nil, invalid(field, "expected YYYY-MM-DD")
		}
		t = ts.UTC()
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &day, nil
}

// listQuery converts f into the storage form. A queued status also matches
// NULL and blank rows; an unrecognized status matches only its own spelling.
func (f Filter) listQuery() repos.ListQuery {
	q := repos.ListQuery{
		From:        f.From,
		ToExclusive: f.ToExclusive(),
		RunID:       f.RunID,
		PropertyID:  f.PropertyID,
		PropNo:      f.PropNo,
		BatchLabel:  f.BatchLabel,
		Q:           f.Q,
		Offset:      f.Offset,
		Limit:       f.Limit,
	}
	if f.Status != nil {
		q.StatusIn = normalization.RawValuesFor(*f.Status)
		q.StatusMatchNull = *f.Status == normalization.StatusQueued
	}
	return q
}

// propertyQuery keeps only the keys properties support.
func (f Filter) propertyQuery() repos.ListQuery {
	return repos.ListQuery{
		RunID:      f.RunID,
		PropertyID: f.PropertyID,
		Q:          f.Q,
		Offset:     f.Offset,
		Limit:      f.Limit,
	}
}
