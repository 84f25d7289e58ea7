package metrics

import (
	"context"

	"github.com/kilianp07/vendpoint/core/events"
	"github.com/kilianp07/vendpoint/core/logger"
	coremetrics "github.com/kilianp07/vendpoint/core/metrics"
	"github.com/kilianp07/vendpoint/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards events to the
// sink. It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := forward(sink, ev); err != nil && log != nil {
					log.Warnf("metrics sink rejected %s: %v", ev.Name(), err)
				}
			}
		}
	}()
}

func forward(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.SubResultEvent:
		r := e.Result
		return sink.RecordResponderResults([]coremetrics.ResponderResult{{
			CorrelationID: e.CorrelationID,
			UID:           r.Candidate.UID,
			Responder:     r.Responder,
			Success:       r.Success(),
			Reason:        r.Reason.String(),
			Latency:       r.Latency,
			Time:          e.Time,
		}})
	case events.RunFinished:
		if rec, ok := sink.(coremetrics.RunRecorder); ok {
			return rec.RecordRun(coremetrics.RunSummary{
				CorrelationID: e.CorrelationID,
				Successes:     e.Successes,
				Failures:      e.Failures,
				Abandoned:     e.Abandoned,
				AllFailed:     e.AllFailed,
				Stopped:       e.Stopped,
				Cancelled:     e.Cancelled,
				Duration:      e.Duration,
				Time:          e.Time,
			})
		}
	case events.DirectorySynced:
		if rec, ok := sink.(coremetrics.DirectoryRecorder); ok {
			return rec.RecordDirectorySync(coremetrics.DirectorySyncEvent{
				Candidates: e.Candidates,
				Success:    e.Err == "",
				Duration:   e.Duration,
				Time:       e.Time,
			})
		}
	}
	return nil
}
