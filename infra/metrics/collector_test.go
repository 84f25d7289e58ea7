package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vendpoint/core/events"
	coremetrics "github.com/kilianp07/vendpoint/core/metrics"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/infra/logger"
	"github.com/kilianp07/vendpoint/internal/eventbus"
)

type captureSink struct {
	mu      sync.Mutex
	results []coremetrics.ResponderResult
	runs    []coremetrics.RunSummary
	syncs   []coremetrics.DirectorySyncEvent
}

func (c *captureSink) RecordResponderResults(r []coremetrics.ResponderResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r...)
	return nil
}

func (c *captureSink) RecordRun(ev coremetrics.RunSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, ev)
	return nil
}

func (c *captureSink) RecordDirectorySync(ev coremetrics.DirectorySyncEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncs = append(c.syncs, ev)
	return nil
}

func (c *captureSink) counts() (int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results), len(c.runs), len(c.syncs)
}

func TestStartEventCollectorForwards(t *testing.T) {
	bus := eventbus.NewTyped[events.Event]()
	sink := &captureSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink, logger.NopLogger{})

	res := model.Failed(model.Candidate{UID: 9}, model.ReasonTimeout, "", "", 2*time.Second)
	bus.Publish(events.SubResultEvent{CorrelationID: "c", Result: res})
	bus.Publish(events.RunFinished{CorrelationID: "c", Failures: 1, AllFailed: true})
	bus.Publish(events.DirectorySynced{Candidates: 3})

	require.Eventually(t, func() bool {
		r, runs, syncs := sink.counts()
		return r == 1 && runs == 1 && syncs == 1
	}, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 9, sink.results[0].UID)
	assert.Equal(t, "timeout", sink.results[0].Reason)
	assert.False(t, sink.results[0].Success)
	assert.True(t, sink.runs[0].AllFailed)
	assert.True(t, sink.syncs[0].Success)
}

func TestForwardSkipsUnsupportedRecorders(t *testing.T) {
	type resultsOnly struct{ coremetrics.MetricsSink }
	sink := resultsOnly{coremetrics.NopSink{}}
	assert.NoError(t, forward(sink, events.RunFinished{}))
	assert.NoError(t, forward(sink, events.DirectorySynced{}))
}
