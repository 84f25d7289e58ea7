package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/vendpoint/core/model"
)

// Request describes one dispatch run.
type Request struct {
	CorrelationID string
	Prompt        []model.Message
	// Candidates is the explicit pool. It is ignored when TopK > 0 and the
	// directory has synced.
	Candidates []model.Candidate
	TopK       int
	// Parallelism bounds the number of sub-requests in flight.
	Parallelism int
	// AttemptBudget caps the number of rounds. Zero means no cap.
	AttemptBudget int
	// Timeout applies to each sub-request. Zero waits for the client.
	Timeout            time.Duration
	StopOnFirstSuccess bool
}

// Validate checks the request shape. All errors wrap ErrInvalidArgument.
func (r Request) Validate() error {
	switch {
	case r.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be >= 1, got %d", ErrInvalidArgument, r.Parallelism)
	case r.TopK < 0:
		return fmt.Errorf("%w: top_k must not be negative", ErrInvalidArgument)
	case r.AttemptBudget < 0:
		return fmt.Errorf("%w: attempt budget must not be negative", ErrInvalidArgument)
	case r.Timeout < 0:
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidArgument)
	case len(r.Prompt) == 0:
		return fmt.Errorf("%w: prompt is empty", ErrInvalidArgument)
	}
	for i, m := range r.Prompt {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidArgument, i, m.Role)
		}
	}
	return nil
}
