package dispatch

import "github.com/kilianp07/vendpoint/core/model"

// Indexed is a SubResult stamped with its position within its partition.
// The index follows arrival order, not candidate rank.
type Indexed struct {
	Index int
	model.SubResult
}

// Outcome is the aggregated result of a run.
type Outcome struct {
	Successes []Indexed
	Failures  []Indexed
	// AllFailed is true when at least one result exists and none succeeded.
	AllFailed bool
	// Results holds every observed result in completion order.
	Results []model.SubResult
	// Abandoned lists sub-requests that were cut short by early stop or by
	// cancellation before they produced a result.
	Abandoned []model.Candidate
	Stopped   bool
	Cancelled bool
}

// Issued is the number of sub-requests sent to responders.
func (o Outcome) Issued() int { return len(o.Results) + len(o.Abandoned) }

// Fold partitions results, given in completion order, into successes and
// failures and stamps each with a zero based index within its partition.
// It is pure: the same input always yields an equal Outcome.
func Fold(results []model.SubResult) Outcome {
	out := Outcome{
		Successes: make([]Indexed, 0, len(results)),
		Failures:  make([]Indexed, 0),
		Results:   make([]model.SubResult, len(results)),
	}
	copy(out.Results, results)
	for _, r := range results {
		if r.Success() {
			out.Successes = append(out.Successes, Indexed{Index: len(out.Successes), SubResult: r})
		} else {
			out.Failures = append(out.Failures, Indexed{Index: len(out.Failures), SubResult: r})
		}
	}
	out.AllFailed = len(out.Successes) == 0 && len(results) > 0
	return out
}
