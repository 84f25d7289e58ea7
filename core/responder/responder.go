// Package responder defines how the gateway talks to a single backend
// responder and the closed set of reasons such a call can fail with.
package responder

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/vendpoint/core/model"
)

// Client sends a prompt to one responder. Implementations must honour ctx
// cancellation and return at most one reply per call. Deadlines are carried
// by ctx.
type Client interface {
	Send(ctx context.Context, c model.Candidate, prompt []model.Message) (model.Reply, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, c model.Candidate, prompt []model.Message) (model.Reply, error)

func (f ClientFunc) Send(ctx context.Context, c model.Candidate, prompt []model.Message) (model.Reply, error) {
	return f(ctx, c, prompt)
}

// Failure is the normalized error returned by client adapters.
type Failure struct {
	Reason    model.FailureReason
	Responder string
	Err       error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason.String()
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail wraps err with a closed failure reason.
func Fail(reason model.FailureReason, responder string, err error) error {
	if reason == model.ReasonNone {
		reason = model.ReasonTransportFailure
	}
	return &Failure{Reason: reason, Responder: responder, Err: err}
}

// ReasonOf maps any error returned by a Client onto the closed reason set.
func ReasonOf(err error) model.FailureReason {
	if err == nil {
		return model.ReasonNone
	}
	var f *Failure
	if errors.As(err, &f) && f.Reason != model.ReasonNone {
		return f.Reason
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return model.ReasonTimeout
	case errors.Is(err, context.Canceled):
		return model.ReasonCancelled
	default:
		return model.ReasonTransportFailure
	}
}

// ResponderOf returns the responder identity attached to a Failure, if any.
func ResponderOf(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Responder
	}
	return ""
}

// Message returns the innermost human readable error text.
func Message(err error) string {
	var f *Failure
	if errors.As(err, &f) && f.Err != nil {
		return f.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
