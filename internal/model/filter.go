package model

import "time"

// DefaultLogLimit caps ListEvents when the filter does not set a limit.
const DefaultLogLimit = 100

// EventLogFilter holds criteria for querying the event log. Results are
// ordered newest first.
type EventLogFilter struct {
	Types []EventKind `json:"types,omitempty"`
	Since time.Time   `json:"since,omitzero"`
	// AfterID keeps only entries with a larger id. Ids never repeat or go
	// backwards, so it is a safe resume point where timestamps are not.
	AfterID int64 `json:"after_id,omitempty"`
	Limit int         `json:"limit,omitempty"` // 0 = DefaultLogLimit, negative = unlimited
}

// EffectiveLimit returns the row limit to apply, or 0 when unlimited.
func (f EventLogFilter) EffectiveLimit() int {
	switch {
	case f.Limit < 0:
		return 0
	case f.Limit == 0:
		return DefaultLogLimit
	}
	return f.Limit
}
