package metrics

import "time"

// ResponderResult is one observed sub-request.
type ResponderResult struct {
	CorrelationID string
	UID           int
	Responder     string
	Success       bool
	Reason        string
	Latency       time.Duration
	Time          time.Time
}

// MetricsSink records sub-request results for observability purposes.
type MetricsSink interface {
	RecordResponderResults(res []ResponderResult) error
}

// RunSummary describes a finished dispatch run.
type RunSummary struct {
	CorrelationID string
	Successes     int
	Failures      int
	Abandoned     int
	AllFailed     bool
	Stopped       bool
	Cancelled     bool
	Duration      time.Duration
	Time          time.Time
}

// RunRecorder records run summaries.
type RunRecorder interface {
	RecordRun(ev RunSummary) error
}

// DirectorySyncEvent captures one ranking refresh.
type DirectorySyncEvent struct {
	Candidates int
	Success    bool
	Duration   time.Duration
	Time       time.Time
}

// DirectoryRecorder records directory refreshes.
type DirectoryRecorder interface {
	RecordDirectorySync(ev DirectorySyncEvent) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordResponderResults([]ResponderResult) error { return nil }
func (NopSink) RecordRun(RunSummary) error                     { return nil }
func (NopSink) RecordDirectorySync(DirectorySyncEvent) error   { return nil }
