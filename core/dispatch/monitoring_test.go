package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/vendpoint/core/model"
	coremon "github.com/kilianp07/vendpoint/core/monitoring"
	"github.com/kilianp07/vendpoint/core/responder/respondertest"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Flush(time.Duration) {}

func TestResponderPanicCaptured(t *testing.T) {
	mon := &recordMonitor{}
	coremon.Init(mon)
	t.Cleanup(func() { coremon.Init(coremon.NopMonitor{}) })

	fake := respondertest.New(map[int]respondertest.Script{1: {Panic: "nil map write"}})
	e := newTestEngine(t, fake, nil)
	out, err := e.Run(context.Background(), Request{Prompt: prompt, Candidates: cands(1), Parallelism: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.Failures) != 1 || out.Failures[0].Reason != model.ReasonTransportFailure {
		t.Fatalf("expected one transport failure, got %#v", out.Failures)
	}
	if mon.err == nil {
		t.Fatalf("panic not captured")
	}
	if mon.tags["uid"] != "1" || mon.tags["component"] != "dispatch" {
		t.Fatalf("tags missing: %v", mon.tags)
	}
}
