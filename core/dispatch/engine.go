package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/vendpoint/core/directory"
	"github.com/kilianp07/vendpoint/core/events"
	"github.com/kilianp07/vendpoint/core/logger"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/core/monitoring"
	"github.com/kilianp07/vendpoint/core/responder"
	"github.com/kilianp07/vendpoint/internal/eventbus"
)

// Engine fans a prompt out to responders in rounds of bounded parallelism.
// An Engine holds no per-run state and may be shared by concurrent callers.
type Engine struct {
	client responder.Client
	dir    directory.Directory
	log    logger.Logger
	bus    *eventbus.TypedBus[events.Event]
}

// NewEngine creates an engine. dir and bus may be nil; without a directory
// every top-K request fails with ErrUpstreamNotReady unless explicit
// candidates are supplied.
func NewEngine(client responder.Client, dir directory.Directory, log logger.Logger, bus *eventbus.TypedBus[events.Event]) (*Engine, error) {
	if client == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewEngine")
	}
	return &Engine{client: client, dir: dir, log: log, bus: bus}, nil
}

type roundResult struct {
	batch     []model.Candidate
	results   []model.SubResult
	abandoned []model.Candidate
	stopped   bool
	cancelled bool
}

type arrival struct {
	slot int
	res  model.SubResult
}

// Run executes req and returns the folded outcome. Only request validation
// and candidate selection produce an error; responder failures are part of
// the outcome. Cancelling ctx returns the partial outcome with Cancelled set.
func (e *Engine) Run(ctx context.Context, req Request) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}
	pool, err := e.selectCandidates(req)
	if err != nil {
		return Outcome{}, err
	}
	pool = truncate(pool, req.AttemptBudget, req.Parallelism)
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	log := e.log.With("correlation_id", req.CorrelationID)
	batches := rounds(pool, req.Parallelism)
	start := time.Now()
	e.publish(events.RunStarted{
		CorrelationID: req.CorrelationID,
		Candidates:    len(pool),
		Parallelism:   req.Parallelism,
		Rounds:        len(batches),
		Time:          start,
	})

	var (
		results   []model.SubResult
		abandoned []model.Candidate
		stopped   bool
		cancelled bool
	)
	for i, batch := range batches {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		roundsStarted.Inc()
		rr := e.runRound(ctx, req, i, batch)
		results = append(results, rr.results...)
		abandoned = append(abandoned, rr.abandoned...)
		if rr.cancelled {
			cancelled = true
			break
		}
		if rr.stopped {
			stopped = true
			earlyStops.Inc()
			break
		}
	}

	out := Fold(results)
	out.Abandoned = abandoned
	out.Stopped = stopped
	out.Cancelled = cancelled
	abandonedTotal.Add(float64(len(abandoned)))
	runsTotal.WithLabelValues(runResult(out)).Inc()
	e.publish(events.RunFinished{
		CorrelationID: req.CorrelationID,
		Successes:     len(out.Successes),
		Failures:      len(out.Failures),
		Abandoned:     len(abandoned),
		AllFailed:     out.AllFailed,
		Stopped:       stopped,
		Cancelled:     cancelled,
		Duration:      time.Since(start),
		Time:          time.Now(),
	})
	log.Infof("dispatch finished: %d ok, %d failed, %d abandoned of %d candidates in %s",
		len(out.Successes), len(out.Failures), len(abandoned), len(pool), time.Since(start))
	return out, nil
}

// runRound issues every candidate of the batch concurrently and collects
// results in completion order until the batch drains, a success triggers an
// early stop, or ctx is cancelled. Sub-requests still running when the round
// ends early are cancelled and reported as abandoned.
func (e *Engine) runRound(ctx context.Context, req Request, round int, batch []model.Candidate) roundResult {
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	arrivals := make(chan arrival, len(batch))
	for slot, c := range batch {
		go func(slot int, c model.Candidate) {
			arrivals <- arrival{slot: slot, res: e.invoke(roundCtx, c, req.Prompt, req.Timeout)}
		}(slot, c)
	}

	rr := roundResult{batch: batch}
	done := make([]bool, len(batch))
	for pending := len(batch); pending > 0; {
		select {
		case a := <-arrivals:
			if a.res.Reason == model.ReasonCancelled && ctx.Err() != nil {
				e.drain(arrivals, &rr, done, req.CorrelationID, round)
				return rr
			}
			pending--
			done[a.slot] = true
			rr.results = append(rr.results, a.res)
			e.observe(req.CorrelationID, round, a.res)
			if req.StopOnFirstSuccess && a.res.Success() {
				rr.stopped = true
				cancel()
				rr.abandoned = pendingOf(batch, done)
				return rr
			}
		case <-ctx.Done():
			e.drain(arrivals, &rr, done, req.CorrelationID, round)
			return rr
		}
	}
	return rr
}

// drain keeps results that were already delivered when the parent context
// was cancelled and marks everything else abandoned.
func (e *Engine) drain(arrivals <-chan arrival, rr *roundResult, done []bool, correlationID string, round int) {
	rr.cancelled = true
	for {
		select {
		case a := <-arrivals:
			if a.res.Reason == model.ReasonCancelled {
				continue
			}
			done[a.slot] = true
			rr.results = append(rr.results, a.res)
			e.observe(correlationID, round, a.res)
		default:
			rr.abandoned = pendingOf(rr.batch, done)
			return
		}
	}
}

func pendingOf(batch []model.Candidate, done []bool) []model.Candidate {
	var out []model.Candidate
	for i, c := range batch {
		if !done[i] {
			out = append(out, c)
		}
	}
	return out
}

type reply struct {
	r   model.Reply
	err error
}

// invoke performs one sub-request and always returns exactly one result.
// The client runs in its own goroutine so a client that ignores ctx cannot
// hold the round past its timeout.
func (e *Engine) invoke(ctx context.Context, c model.Candidate, prompt []model.Message, timeout time.Duration) model.SubResult {
	var (
		subCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		subCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		subCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	replies := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				err := monitoring.CapturePanic(p, map[string]string{"uid": strconv.Itoa(c.UID), "component": "dispatch"})
				replies <- reply{err: responder.Fail(model.ReasonTransportFailure, "", err)}
			}
		}()
		r, err := e.client.Send(subCtx, c, prompt)
		replies <- reply{r: r, err: err}
	}()

	select {
	case rep := <-replies:
		latency := time.Since(start)
		if rep.err != nil {
			return model.Failed(c, responder.ReasonOf(rep.err), responder.Message(rep.err), responder.ResponderOf(rep.err), latency)
		}
		return model.Succeeded(c, rep.r, latency)
	case <-subCtx.Done():
		latency := time.Since(start)
		if ctx.Err() != nil {
			return model.Failed(c, model.ReasonCancelled, "cancelled", "", latency)
		}
		return model.Failed(c, model.ReasonTimeout, fmt.Sprintf("no response within %s", timeout), "", latency)
	}
}

func (e *Engine) observe(correlationID string, round int, r model.SubResult) {
	outcome := "success"
	if !r.Success() {
		outcome = "failure"
	}
	subRequests.WithLabelValues(outcome, r.Reason.String()).Inc()
	subLatency.WithLabelValues(outcome).Observe(r.Latency.Seconds())
	e.log.Debugw("sub-request finished", map[string]any{
		"correlation_id": correlationID,
		"round":          round,
		"uid":            r.Candidate.UID,
		"responder":      r.Responder,
		"success":        r.Success(),
		"reason":         r.Reason.String(),
		"latency_ms":     r.Latency.Milliseconds(),
	})
	e.publish(events.SubResultEvent{CorrelationID: correlationID, Round: round, Result: r, Time: time.Now()})
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
