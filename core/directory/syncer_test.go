package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vendpoint/core/events"
	"github.com/kilianp07/vendpoint/core/factory"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/infra/logger"
	"github.com/kilianp07/vendpoint/internal/eventbus"
)

func TestSyncerNotSyncedUntilFirstFetch(t *testing.T) {
	s, err := NewSyncer(StaticSource{}, Config{}, logger.NopLogger{}, nil)
	require.NoError(t, err)
	assert.False(t, s.Synced())
	assert.Nil(t, s.Ranked())
	_, ok := s.Lookup(1)
	assert.False(t, ok)
}

func TestSyncerSortsAndPublishesSnapshot(t *testing.T) {
	src := StaticSource{Candidates: []model.Candidate{
		{UID: 1, Rank: 0.1}, {UID: 2, Rank: 0.7}, {UID: 3, Rank: 0.7}, {UID: 4, Rank: 0.4},
	}}
	bus := eventbus.NewTyped[events.Event]()
	sub := bus.Subscribe()
	s, err := NewSyncer(src, Config{}, logger.NopLogger{}, bus)
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background()))

	var uids []int
	for _, c := range s.Ranked() {
		uids = append(uids, c.UID)
	}
	assert.Equal(t, []int{2, 3, 4, 1}, uids)
	assert.True(t, s.Synced())

	ev := (<-sub).(events.DirectorySynced)
	assert.Equal(t, 4, ev.Candidates)
	assert.Empty(t, ev.Err)

	c, ok := s.Lookup(4)
	require.True(t, ok)
	assert.Equal(t, 0.4, c.Rank)
	assert.Equal(t, []model.Candidate{{UID: 3, Rank: 0.7}, {UID: 99}}, s.Resolve([]int{3, 99}))
}

func TestSyncerKeepsLastGoodSnapshotOnFailure(t *testing.T) {
	var fail atomic.Bool
	src := SourceFunc(func(context.Context) ([]model.Candidate, error) {
		if fail.Load() {
			return nil, errors.New("metagraph unavailable")
		}
		return []model.Candidate{{UID: 5, Rank: 1}}, nil
	})
	s, err := NewSyncer(src, Config{}, logger.NopLogger{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background()))
	before := s.Snapshot()

	fail.Store(true)
	assert.Error(t, s.Sync(context.Background()))
	assert.Same(t, before, s.Snapshot())
	assert.Equal(t, uint64(1), s.Failures())
}

func TestSnapshotReplacementIsNotObservedByHeldReaders(t *testing.T) {
	var n atomic.Int32
	src := SourceFunc(func(context.Context) ([]model.Candidate, error) {
		v := int(n.Add(1))
		return []model.Candidate{{UID: v}, {UID: v}}, nil
	})
	s, err := NewSyncer(src, Config{}, logger.NopLogger{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = s.Sync(context.Background())
		}
	}()
	for i := 0; i < 200; i++ {
		r := s.Ranked()
		require.Len(t, r, 2)
		assert.Equal(t, r[0].UID, r[1].UID, "snapshot observed half updated")
	}
	wg.Wait()
}

func TestSyncerRunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]model.Candidate, error) {
		calls.Add(1)
		return nil, nil
	})
	s, err := NewSyncer(src, Config{IntervalSeconds: 3600}, logger.NopLogger{}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	require.Eventually(t, s.Synced, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewSourceStatic(t *testing.T) {
	src, err := NewSource(factory.ModuleConfig{Type: "static", Conf: map[string]any{
		"candidates": []map[string]any{{"uid": 3, "hotkey": "hk3", "rank": 0.5}},
	}})
	require.NoError(t, err)
	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Candidate{{UID: 3, Hotkey: "hk3", Rank: 0.5}}, got)

	_, err = NewSource(factory.ModuleConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNewSyncerRejectsNil(t *testing.T) {
	_, err := NewSyncer(nil, Config{}, logger.NopLogger{}, nil)
	assert.Error(t, err)
}
