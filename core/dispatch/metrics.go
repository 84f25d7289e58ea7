package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	subRequests    *prometheus.CounterVec
	subLatency     *prometheus.HistogramVec
	roundsStarted  prometheus.Counter
	earlyStops     prometheus.Counter
	runsTotal      *prometheus.CounterVec
	abandonedTotal prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter, prometheus.Counter, *prometheus.CounterVec, prometheus.Counter) {
	sub := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_subrequests_total",
			Help: "Number of sub-requests by outcome and failure reason",
		},
		[]string{"outcome", "reason"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_subrequest_latency_seconds",
			Help:    "Latency of sub-requests from issue to result",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)
	rounds := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_rounds_total",
			Help: "Number of dispatch rounds started",
		},
	)
	stops := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_early_stops_total",
			Help: "Number of runs ended early by a success",
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_runs_total",
			Help: "Number of dispatch runs by result",
		},
		[]string{"result"},
	)
	abandoned := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_abandoned_total",
			Help: "Number of in-flight sub-requests cancelled before producing a result",
		},
	)
	return sub, lat, rounds, stops, runs, abandoned
}

func init() {
	subRequests, subLatency, roundsStarted, earlyStops, runsTotal, abandonedTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(subRequests, subLatency, roundsStarted, earlyStops, runsTotal, abandonedTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	subRequests, subLatency, roundsStarted, earlyStops, runsTotal, abandonedTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func runResult(o Outcome) string {
	switch {
	case o.Cancelled:
		return "cancelled"
	case len(o.Results) == 0:
		return "empty"
	case o.AllFailed:
		return "all_failed"
	default:
		return "ok"
	}
}
