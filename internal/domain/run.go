package domain

import "time"

// RunStatus is the final outcome of one Fetch.
type RunStatus string

// Run outcomes.
const (
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// RunRecord stores the metadata of one Fetch. Result rows are never kept.
type RunRecord struct {
	ID           string
	QueryID      int64
	QueryName    string
	Network      Network
	Status       RunStatus
	Attempts     int
	JobID        *string
	ResultID     *string
	RowCount     int
	Columns      []string
	ErrorCode    *string
	ErrorMessage *string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration is the wall-clock time the run took.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFilter narrows a run history listing.
type RunFilter struct {
	QueryID *int64
	Status  *RunStatus
	Since   *time.Time
	Limit   int
}

// DefaultRunLimit is the listing size when RunFilter.Limit is unset.
const DefaultRunLimit = 50

// EffectiveLimit returns Limit clamped to [1, 1000].
func (f RunFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultRunLimit
	case f.Limit > 1000:
		return 1000
	}
	return f.Limit
}
