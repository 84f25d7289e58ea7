package directory

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kilianp07/vendpoint/core/events"
	"github.com/kilianp07/vendpoint/core/logger"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/internal/eventbus"
)

// Syncer periodically refreshes the ranking from a Source and publishes it
// as an immutable Snapshot. It implements Directory.
type Syncer struct {
	src      Source
	interval time.Duration
	backoff  time.Duration
	timeout  time.Duration
	log      logger.Logger
	bus      *eventbus.TypedBus[events.Event]
	snap     atomic.Pointer[Snapshot]
	failures atomic.Uint64
}

// NewSyncer builds a Syncer. bus may be nil.
func NewSyncer(src Source, cfg Config, log logger.Logger, bus *eventbus.TypedBus[events.Event]) (*Syncer, error) {
	if src == nil || log == nil {
		return nil, fmt.Errorf("directory: nil parameter provided to NewSyncer")
	}
	cfg.SetDefaults()
	return &Syncer{
		src:      src,
		interval: time.Duration(cfg.IntervalSeconds) * time.Second,
		backoff:  time.Duration(cfg.FailBackoffSeconds) * time.Second,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		log:      log,
		bus:      bus,
	}, nil
}

// Sync fetches the ranking once. On failure the previous snapshot is kept.
func (s *Syncer) Sync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	cands, err := s.src.Fetch(ctx)
	ev := events.DirectorySynced{Duration: time.Since(start), Time: time.Now()}
	if err != nil {
		s.failures.Add(1)
		ev.Err = err.Error()
		s.publish(ev)
		return fmt.Errorf("directory sync: %w", err)
	}
	ranked := make([]model.Candidate, len(cands))
	copy(ranked, cands)
	model.SortByRank(ranked)
	s.snap.Store(newSnapshot(ranked, ev.Time))
	ev.Candidates = len(ranked)
	s.publish(ev)
	s.log.Infof("directory synced %d candidates in %s", len(ranked), ev.Duration)
	return nil
}

// Run syncs immediately and then every interval until ctx is cancelled.
// A failed sync waits an additional backoff before the next attempt.
func (s *Syncer) Run(ctx context.Context) {
	for {
		wait := s.interval
		if err := s.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Errorf("%v", err)
			wait += s.backoff
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *Syncer) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// Snapshot returns the current snapshot or nil if never synced.
func (s *Syncer) Snapshot() *Snapshot { return s.snap.Load() }

func (s *Syncer) Ranked() []model.Candidate {
	if snap := s.snap.Load(); snap != nil {
		return snap.Candidates
	}
	return nil
}

func (s *Syncer) Synced() bool { return s.snap.Load() != nil }

// Failures is the number of failed refreshes since start.
func (s *Syncer) Failures() uint64 { return s.failures.Load() }

// Lookup resolves a uid against the current snapshot.
func (s *Syncer) Lookup(uid int) (model.Candidate, bool) {
	snap := s.snap.Load()
	if snap == nil {
		return model.Candidate{}, false
	}
	i, ok := snap.byUID[uid]
	if !ok {
		return model.Candidate{}, false
	}
	return snap.Candidates[i], true
}

// Resolve maps explicit uids to candidates. Unknown uids become bare
// candidates so the request still reaches the adapter and fails there.
func (s *Syncer) Resolve(uids []int) []model.Candidate {
	out := make([]model.Candidate, len(uids))
	for i, uid := range uids {
		if c, ok := s.Lookup(uid); ok {
			out[i] = c
			continue
		}
		out[i] = model.Candidate{UID: uid}
	}
	return out
}
