package events

import (
	"time"

	"github.com/kilianp07/vendpoint/core/model"
)

// Event is anything published on the gateway bus. Name is used as the
// subject suffix when events leave the process.
type Event interface {
	Name() string
}

// RunStarted is published once the candidate pool of a run is known.
type RunStarted struct {
	CorrelationID string    `json:"correlation_id"`
	Candidates    int       `json:"candidates"`
	Parallelism   int       `json:"parallelism"`
	Rounds        int       `json:"rounds"`
	Time          time.Time `json:"time"`
}

func (RunStarted) Name() string { return "run.started" }

// SubResultEvent carries one sub-request result as soon as it is observed.
type SubResultEvent struct {
	CorrelationID string          `json:"correlation_id"`
	Round         int             `json:"round"`
	Result        model.SubResult `json:"result"`
	Time          time.Time       `json:"time"`
}

func (SubResultEvent) Name() string { return "run.subresult" }

// RunFinished summarizes a completed run.
type RunFinished struct {
	CorrelationID string        `json:"correlation_id"`
	Successes     int           `json:"successes"`
	Failures      int           `json:"failures"`
	Abandoned     int           `json:"abandoned"`
	AllFailed     bool          `json:"all_failed"`
	Stopped       bool          `json:"stopped"`
	Cancelled     bool          `json:"cancelled"`
	Duration      time.Duration `json:"duration"`
	Time          time.Time     `json:"time"`
}

func (RunFinished) Name() string { return "run.finished" }

// DirectorySynced reports a ranking refresh. Err is empty on success.
type DirectorySynced struct {
	Candidates int           `json:"candidates"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Time       time.Time     `json:"time"`
}

func (DirectorySynced) Name() string { return "directory.synced" }
