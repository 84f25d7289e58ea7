package requestlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]Record{
		{UID: 1, Success: true, LatencyMS: 10},
		{UID: 1, Success: true, LatencyMS: 20},
		{UID: 2, Reason: "timeout", LatencyMS: 30},
		{UID: 3, Success: true, LatencyMS: 40},
		{UID: 4, Reason: "cancelled"},
	})
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Successes)
	assert.Equal(t, 2, s.Failures)
	assert.InDelta(t, 0.6, s.SuccessRate, 1e-9)
	assert.InDelta(t, 25, s.MeanLatencyMS, 1e-9)
	assert.Equal(t, 20.0, s.P50LatencyMS)
	assert.Equal(t, 40.0, s.P95LatencyMS)
	assert.Equal(t, map[string]int{"timeout": 1, "cancelled": 1}, s.ByReason)
	assert.Equal(t, 2, s.ByResponder[1])
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.SuccessRate)
	assert.Zero(t, s.MeanLatencyMS)
}
