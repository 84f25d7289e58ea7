package main

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func roll() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float64()
}

// Verdict is what a simulated responder does with one prompt.
type Verdict int

const (
	Answer Verdict = iota
	Reject
	Fail
)

// Behaviour decides how a responder answers and how long it takes.
type Behaviour struct {
	Latency    time.Duration
	Jitter     time.Duration
	FailRate   float64
	RejectRate float64
}

// Decide draws the verdict. Failures take precedence over rejections.
func (b Behaviour) Decide() Verdict {
	switch {
	case b.FailRate > 0 && roll() < b.FailRate:
		return Fail
	case b.RejectRate > 0 && roll() < b.RejectRate:
		return Reject
	default:
		return Answer
	}
}

// Wait sleeps for the latency plus a random share of the jitter. It returns
// false when ctx ends first.
func (b Behaviour) Wait(ctx context.Context) bool {
	d := b.Latency
	if b.Jitter > 0 {
		d += time.Duration(roll() * float64(b.Jitter))
	}
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
