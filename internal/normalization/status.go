package normalization

import (
	"sort"
	"strings"
)

// Status is the canonical pipeline status. Values outside the four canonical
// ones carry the "unknown:" prefix so data-quality checks can find them.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusProcessing Status = "processing"
	StatusQueued     Status = "queued"

	unknownPrefix = "unknown:"
)

var statusAliases = map[string]Status{
	"completed":  StatusSuccess,
	"success":    StatusSuccess,
	"failed":     StatusFailed,
	"processing": StatusProcessing,
	"queued":     StatusQueued,
}

// NormalizeStatus maps a raw status column to the canonical taxonomy.
// nil and blank map to queued. It never fails.
func NormalizeStatus(raw *string) Status {
	if raw == nil {
		return StatusQueued
	}
	return NormalizeStatusString(*raw)
}

func NormalizeStatusString(raw string) Status {
	key := ParseInputString(raw)
	if key == "" {
		return StatusQueued
	}
	if st, ok := statusAliases[key]; ok {
		return st
	}
	return Status(unknownPrefix + key)
}

// Known is false for the unrecognized bucket.
func (s Status) Known() bool {
	return !strings.HasPrefix(string(s), unknownPrefix)
}

// Raw returns the original (lowered) spelling of an unrecognized status.
func (s Status) Raw() string {
	return strings.TrimPrefix(string(s), unknownPrefix)
}

// RawValuesFor lists the stored spellings that normalize to s. Matching is done
// on lowered values; queued also matches NULL and blank, which callers must
// handle separately.
func RawValuesFor(s Status) []string {
	if !s.Known() {
		return []string{s.Raw()}
	}
	out := []string{}
	for raw, st := range statusAliases {
		if st == s {
			out = append(out, raw)
		}
	}
	sort.Strings(out)
	return out
}
