package domain

import (
	"strconv"
	"time"
)

// Query is one unit of work submitted to the service. It is a value type:
// the orchestrator works on its own copy for every attempt.
type Query struct {
	ID          int64
	Name        string
	Description string
	RawSQL      string
	Network     Network
	Parameters  []QueryParameter
}

// Validate checks the fields the service requires before registration.
func (q Query) Validate() error {
	if q.ID <= 0 {
		return ErrValidation("query id must be positive, got %d", q.ID)
	}
	if q.RawSQL == "" {
		return ErrValidation("query %d has empty SQL", q.ID)
	}
	if !q.Network.Valid() {
		return ErrValidation("query %d has unsupported network %d", q.ID, int(q.Network))
	}
	seen := make(map[string]struct{}, len(q.Parameters))
	for _, p := range q.Parameters {
		if _, dup := seen[p.Key]; dup {
			return ErrValidation("query %d has duplicate parameter %q", q.ID, p.Key)
		}
		seen[p.Key] = struct{}{}
		if err := p.Validate(); err != nil {
			return ErrValidation("query %d: %v", q.ID, err)
		}
	}
	return nil
}

// Clone returns a copy whose parameter slice is not shared with q.
func (q Query) Clone() Query {
	out := q
	if q.Parameters != nil {
		out.Parameters = append([]QueryParameter(nil), q.Parameters...)
	}
	return out
}

// IDString returns the query id as a decimal string.
func (q Query) IDString() string {
	return strconv.FormatInt(q.ID, 10)
}

// RunMetadata describes one completed run. GeneratedAtRaw keeps the service's
// original timestamp text; GeneratedAt is zero when it could not be parsed.
type RunMetadata struct {
	ID             string
	JobID          string
	Error          *string
	RuntimeMs      int64
	GeneratedAt    time.Time
	GeneratedAtRaw string
	Columns        []string
}

// Record is one result row. Every cell is rendered as a string.
type Record map[string]string

// ResultSet is the tabular output of a completed job.
type ResultSet struct {
	Meta RunMetadata
	Rows []Record
}

// Column returns the values of one column in row order.
func (r *ResultSet) Column(name string) []string {
	out := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row[name])
	}
	return out
}
