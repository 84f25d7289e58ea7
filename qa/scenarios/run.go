package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vendpoint/core/directory"
	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/events"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/core/responder/respondertest"
	"github.com/kilianp07/vendpoint/infra/logger"
	"github.com/kilianp07/vendpoint/infra/metrics"
	"github.com/kilianp07/vendpoint/internal/eventbus"
)

// RunScenario replays sc against a synced directory and a scripted client,
// then checks the outcome and the exported per-responder counters.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := eventbus.NewTypedSize[events.Event](256)
	defer bus.Close()
	metrics.StartEventCollector(ctx, bus, sink, logger.NopLogger{})

	cands := make([]model.Candidate, len(sc.Responders))
	scripts := make(map[int]respondertest.Script, len(sc.Responders))
	for i, r := range sc.Responders {
		cands[i] = r.Candidate()
		scripts[r.UID] = r.Script()
	}
	syncer, err := directory.NewSyncer(directory.StaticSource{Candidates: cands}, directory.Config{}, logger.NopLogger{}, bus)
	require.NoError(t, err)
	require.NoError(t, syncer.Sync(ctx))

	fake := respondertest.New(scripts)
	engine, err := dispatch.NewEngine(fake, syncer, logger.NopLogger{}, bus)
	require.NoError(t, err)

	out, err := engine.Run(ctx, sc.DispatchRequest())
	require.NoError(t, err)

	exp := sc.Expected
	assert.Len(t, out.Successes, exp.Successes, "successes")
	assert.Len(t, out.Failures, exp.Failures, "failures")
	assert.Len(t, out.Abandoned, exp.Abandoned, "abandoned")
	assert.Equal(t, exp.AllFailed, out.AllFailed, "all_failed")
	assert.Equal(t, exp.Stopped, out.Stopped, "stopped")
	if exp.Called != nil {
		assert.ElementsMatch(t, exp.Called, fake.Calls(), "called")
	}
	if exp.Reasons != nil {
		got := map[string]int{}
		for _, f := range out.Failures {
			got[f.Reason.String()]++
		}
		assert.Equal(t, exp.Reasons, got, "reasons")
	}

	want := float64(len(out.Results))
	assert.Eventually(t, func() bool { return resultsTotal(t, reg) == want }, time.Second, 10*time.Millisecond,
		"responder_results_total should count every result")
}

func resultsTotal(t *testing.T, reg *prometheus.Registry) float64 {
	mfs, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != "responder_results_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
