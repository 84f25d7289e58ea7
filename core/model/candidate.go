package model

import "sort"

// Candidate is one addressable responder eligible for a sub-request.
// Candidates are treated as immutable values once selected for a run.
type Candidate struct {
	UID      int     `json:"uid"`
	Hotkey   string  `json:"hotkey,omitempty"`
	Endpoint string  `json:"endpoint,omitempty"`
	Rank     float64 `json:"rank,omitempty"`
}

// Identity returns the responder identity to report when the responder did
// not announce one itself.
func (c Candidate) Identity() string {
	return c.Hotkey
}

// SortByRank orders candidates by descending rank. Ties keep their original
// relative order.
func SortByRank(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Rank > cands[j].Rank
	})
}
