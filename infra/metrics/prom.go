package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/vendpoint/core/metrics"
)

// PromSink records per-responder series in Prometheus metrics.
type PromSink struct {
	results    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	runs       *prometheus.HistogramVec
	candidates prometheus.Gauge
	syncs      *prometheus.CounterVec
}

// NewPromSink registers gateway metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register registers c, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.results, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "responder_results_total",
		Help: "Sub-request results per responder",
	}, []string{"uid", "success", "reason"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "responder_latency_seconds",
		Help:    "Sub-request latency per responder",
		Buckets: prometheus.DefBuckets,
	}, []string{"uid", "success"})); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_run_duration_seconds",
		Help:    "Duration of dispatch runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"all_failed", "stopped"})); err != nil {
		return nil, err
	}
	if s.candidates, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "directory_candidates",
		Help: "Number of candidates in the last published ranking",
	})); err != nil {
		return nil, err
	}
	if s.syncs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_syncs_total",
		Help: "Ranking refresh attempts by result",
	}, []string{"success"})); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordResponderResults increments the per-responder counters.
func (s *PromSink) RecordResponderResults(res []coremetrics.ResponderResult) error {
	for _, r := range res {
		uid := strconv.Itoa(r.UID)
		ok := strconv.FormatBool(r.Success)
		s.results.WithLabelValues(uid, ok, r.Reason).Inc()
		s.latency.WithLabelValues(uid, ok).Observe(r.Latency.Seconds())
	}
	return nil
}

func (s *PromSink) RecordRun(ev coremetrics.RunSummary) error {
	s.runs.WithLabelValues(strconv.FormatBool(ev.AllFailed), strconv.FormatBool(ev.Stopped)).Observe(ev.Duration.Seconds())
	return nil
}

func (s *PromSink) RecordDirectorySync(ev coremetrics.DirectorySyncEvent) error {
	s.syncs.WithLabelValues(strconv.FormatBool(ev.Success)).Inc()
	if ev.Success {
		s.candidates.Set(float64(ev.Candidates))
	}
	return nil
}
