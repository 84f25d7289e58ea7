package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/vendpoint/core/metrics"
)

func TestPromSink_RecordResponderResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	sinkIf, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	sink, ok := sinkIf.(*PromSink)
	if !ok {
		t.Fatalf("expected PromSink")
	}
	err = sink.RecordResponderResults([]coremetrics.ResponderResult{
		{UID: 1, Success: true, Latency: 150 * time.Millisecond},
		{UID: 2, Reason: "timeout", Latency: time.Second},
		{UID: 2, Reason: "timeout", Latency: time.Second},
	})
	if err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP responder_results_total Sub-request results per responder
# TYPE responder_results_total counter
responder_results_total{reason="",success="true",uid="1"} 1
responder_results_total{reason="timeout",success="false",uid="2"} 2
`
	if err := testutil.CollectAndCompare(sink.results, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if n := testutil.CollectAndCount(sink.latency); n != 2 {
		t.Errorf("expected 2 latency series got %d", n)
	}
}

func TestPromSink_DirectoryAndRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	sinkIf, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	sink := sinkIf.(*PromSink)
	_ = sink.RecordDirectorySync(coremetrics.DirectorySyncEvent{Candidates: 12, Success: true})
	_ = sink.RecordDirectorySync(coremetrics.DirectorySyncEvent{Success: false})
	_ = sink.RecordRun(coremetrics.RunSummary{Duration: time.Second, Stopped: true})

	if v := testutil.ToFloat64(sink.candidates); v != 12 {
		t.Errorf("candidates gauge: %v", v)
	}
	if v := testutil.ToFloat64(sink.syncs.WithLabelValues("false")); v != 1 {
		t.Errorf("failed syncs: %v", v)
	}
	if n := testutil.CollectAndCount(sink.runs); n != 1 {
		t.Errorf("run series: %d", n)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	_ = a.RecordResponderResults([]coremetrics.ResponderResult{{UID: 1, Success: true}})
	if v := testutil.ToFloat64(b.(*PromSink).results.WithLabelValues("1", "true", "")); v != 1 {
		t.Fatalf("collectors not shared: %v", v)
	}
}
