// Package directory keeps the ranked list of responders the gateway may
// dispatch to. A Syncer owns the list and replaces it wholesale on every
// refresh so readers always see a complete snapshot without locking.
package directory

import (
	"context"
	"time"

	"github.com/kilianp07/vendpoint/core/factory"
	"github.com/kilianp07/vendpoint/core/model"
)

// Directory is the read side used by the dispatch engine.
type Directory interface {
	// Ranked returns the current candidates ordered by descending rank.
	// The slice belongs to an immutable snapshot and must not be modified.
	Ranked() []model.Candidate
	// Synced reports whether at least one refresh succeeded.
	Synced() bool
}

// Source fetches a fresh ranking from wherever it lives.
type Source interface {
	Fetch(ctx context.Context) ([]model.Candidate, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]model.Candidate, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]model.Candidate, error) { return f(ctx) }

// Snapshot is one published ranking.
type Snapshot struct {
	Candidates []model.Candidate
	SyncedAt   time.Time
	byUID      map[int]int
}

func newSnapshot(cands []model.Candidate, at time.Time) *Snapshot {
	s := &Snapshot{Candidates: cands, SyncedAt: at, byUID: make(map[int]int, len(cands))}
	for i, c := range cands {
		if _, dup := s.byUID[c.UID]; !dup {
			s.byUID[c.UID] = i
		}
	}
	return s
}

// Config controls the refresh loop and the ranking source.
type Config struct {
	IntervalSeconds    int                  `json:"interval_seconds"`
	FailBackoffSeconds int                  `json:"fail_backoff_seconds"`
	TimeoutSeconds     int                  `json:"timeout_seconds"`
	Source             factory.ModuleConfig `json:"source"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 60
	}
	if c.FailBackoffSeconds < 0 {
		c.FailBackoffSeconds = 0
	} else if c.FailBackoffSeconds == 0 {
		c.FailBackoffSeconds = 60
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.Source.Type == "" {
		c.Source.Type = "static"
	}
}

var sources = factory.NewRegistry[Source]()

// RegisterSource adds a ranking source factory identified by name.
func RegisterSource(name string, f factory.Factory[Source]) error {
	return sources.Register(name, f)
}

// NewSource creates a Source from its module configuration.
func NewSource(cfg factory.ModuleConfig) (Source, error) {
	return sources.Create(cfg)
}
