// Package requestlog persists one record per dispatched sub-request for
// auditing, and answers filtered queries and latency statistics over them.
package requestlog

import (
	"context"
	"time"
)

// Record captures one sub-request and its result.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	KeyHint       string    `json:"key_hint,omitempty"`
	UID           int       `json:"uid"`
	Responder     string    `json:"responder,omitempty"`
	Success       bool      `json:"success"`
	Reason        string    `json:"reason,omitempty"`
	Error         string    `json:"error,omitempty"`
	Completion    string    `json:"completion,omitempty"`
	LatencyMS     int64     `json:"latency_ms"`
	Prompt        string    `json:"prompt,omitempty"`
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	Start         time.Time
	End           time.Time
	UID           *int
	KeyHint       string
	CorrelationID string
	Success       *bool
	// Limit keeps only the most recent records when > 0.
	Limit int
}

// Match reports whether r passes every filter of q.
func (q Query) Match(r Record) bool {
	switch {
	case !q.Start.IsZero() && r.Timestamp.Before(q.Start):
		return false
	case !q.End.IsZero() && r.Timestamp.After(q.End):
		return false
	case q.UID != nil && r.UID != *q.UID:
		return false
	case q.KeyHint != "" && r.KeyHint != q.KeyHint:
		return false
	case q.CorrelationID != "" && r.CorrelationID != q.CorrelationID:
		return false
	case q.Success != nil && r.Success != *q.Success:
		return false
	}
	return true
}

func (q Query) limit(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, recs ...Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
