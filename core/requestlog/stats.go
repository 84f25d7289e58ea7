package requestlog

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a set of records.
type Stats struct {
	Total         int            `json:"total"`
	Successes     int            `json:"successes"`
	Failures      int            `json:"failures"`
	SuccessRate   float64        `json:"success_rate"`
	MeanLatencyMS float64        `json:"mean_latency_ms"`
	P50LatencyMS  float64        `json:"p50_latency_ms"`
	P95LatencyMS  float64        `json:"p95_latency_ms"`
	ByReason      map[string]int `json:"by_reason"`
	ByResponder   map[int]int    `json:"successes_by_uid"`
}

// Summarize computes totals and latency statistics. Latency figures only
// consider records that carry a measured latency.
func Summarize(recs []Record) Stats {
	s := Stats{Total: len(recs), ByReason: map[string]int{}, ByResponder: map[int]int{}}
	lat := make([]float64, 0, len(recs))
	for _, r := range recs {
		if r.Success {
			s.Successes++
			s.ByResponder[r.UID]++
		} else {
			s.Failures++
			s.ByReason[r.Reason]++
		}
		if r.LatencyMS > 0 {
			lat = append(lat, float64(r.LatencyMS))
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Total)
	}
	if len(lat) == 0 {
		return s
	}
	sort.Float64s(lat)
	s.MeanLatencyMS = stat.Mean(lat, nil)
	s.P50LatencyMS = stat.Quantile(0.5, stat.Empirical, lat, nil)
	s.P95LatencyMS = stat.Quantile(0.95, stat.Empirical, lat, nil)
	return s
}
