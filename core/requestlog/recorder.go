package requestlog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/logger"
	"github.com/kilianp07/vendpoint/core/model"
)

// Recorder writes records to a Store off the request path. Writes are
// queued on a worker pool and Close waits for every queued write. Records
// arriving after Close are dropped.
type Recorder struct {
	store    Store
	pool     *workerpool.WorkerPool
	mu       sync.RWMutex
	closed   bool
	log      logger.Logger
	snapshot bool
	now      func() time.Time
}

// NewRecorder wraps store with workers concurrent writers.
func NewRecorder(store Store, workers int, snapshot bool, log logger.Logger) *Recorder {
	if workers < 1 {
		workers = 1
	}
	return &Recorder{store: store, pool: workerpool.New(workers), log: log, snapshot: snapshot, now: time.Now}
}

// Meta identifies the inbound call the records belong to.
type Meta struct {
	CorrelationID string
	KeyHint       string
	Prompt        []model.Message
}

// Record queues one record for a sub-request result.
func (r *Recorder) Record(c model.Candidate, res model.SubResult, prompt []model.Message, correlationID string) {
	rec := r.build(Meta{CorrelationID: correlationID, Prompt: prompt}, r.promptJSON(prompt), res)
	rec.UID = c.UID
	r.submit([]Record{rec})
}

// RecordOutcome queues one record per result of the outcome plus one
// cancelled record per abandoned sub-request, as a single batch.
func (r *Recorder) RecordOutcome(meta Meta, out dispatch.Outcome) {
	prompt := r.promptJSON(meta.Prompt)
	recs := make([]Record, 0, out.Issued())
	for _, res := range out.Results {
		recs = append(recs, r.build(meta, prompt, res))
	}
	for _, c := range out.Abandoned {
		recs = append(recs, r.build(meta, prompt, model.Failed(c, model.ReasonCancelled, "abandoned", "", 0)))
	}
	if len(recs) > 0 {
		r.submit(recs)
	}
}

func (r *Recorder) build(meta Meta, prompt string, res model.SubResult) Record {
	return Record{
		Timestamp:     r.now(),
		CorrelationID: meta.CorrelationID,
		KeyHint:       meta.KeyHint,
		UID:           res.Candidate.UID,
		Responder:     res.Responder,
		Success:       res.Success(),
		Reason:        res.Reason.String(),
		Error:         res.Error,
		Completion:    res.Content,
		LatencyMS:     res.Latency.Milliseconds(),
		Prompt:        prompt,
	}
}

func (r *Recorder) promptJSON(prompt []model.Message) string {
	if !r.snapshot || len(prompt) == 0 {
		return ""
	}
	b, err := json.Marshal(prompt)
	if err != nil {
		return ""
	}
	return string(b)
}

func (r *Recorder) submit(recs []Record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warnf("request log closed, dropping %d records", len(recs))
		return
	}
	r.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.store.Append(ctx, recs...); err != nil {
			r.log.Errorf("request log append failed for %d records: %v", len(recs), err)
		}
	})
}

// Store returns the underlying store for queries.
func (r *Recorder) Store() Store { return r.store }

// Close drains pending writes and closes the store. Later calls are no-ops.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	r.pool.StopWait()
	return r.store.Close()
}
