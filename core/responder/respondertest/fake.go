// Package respondertest provides a scripted responder.Client for tests.
package respondertest

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/vendpoint/core/model"
)

// Script describes how the fake answers one uid.
type Script struct {
	Delay   time.Duration
	Content string
	Err     error
	// IgnoreCancel makes the call sleep through ctx cancellation.
	IgnoreCancel bool
	Panic        any
}

// Fake is a responder.Client whose behaviour is scripted per uid. Unknown
// uids answer immediately with "ok".
type Fake struct {
	mu        sync.Mutex
	scripts   map[int]Script
	calls     []int
	cancelled map[int]bool
	inFlight  int
	maxFlight int
}

// New returns a Fake with the given scripts.
func New(scripts map[int]Script) *Fake {
	if scripts == nil {
		scripts = map[int]Script{}
	}
	return &Fake{scripts: scripts, cancelled: map[int]bool{}}
}

func (f *Fake) Send(ctx context.Context, c model.Candidate, _ []model.Message) (model.Reply, error) {
	f.mu.Lock()
	s, ok := f.scripts[c.UID]
	f.calls = append(f.calls, c.UID)
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()
	if !ok {
		s = Script{Content: "ok"}
	}
	if s.Panic != nil {
		panic(s.Panic)
	}
	if s.Delay > 0 {
		if s.IgnoreCancel {
			time.Sleep(s.Delay)
		} else {
			t := time.NewTimer(s.Delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				f.mu.Lock()
				f.cancelled[c.UID] = true
				f.mu.Unlock()
				return model.Reply{}, ctx.Err()
			}
		}
	}
	if s.Err != nil {
		return model.Reply{}, s.Err
	}
	return model.Reply{Content: s.Content, Responder: c.Hotkey}, nil
}

// Calls returns the uids in the order they were sent.
func (f *Fake) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

// Cancelled reports whether the call to uid observed cancellation.
func (f *Fake) Cancelled(uid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[uid]
}

// MaxInFlight is the highest number of concurrent calls seen.
func (f *Fake) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFlight
}
