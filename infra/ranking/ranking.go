// Package ranking provides remote sources of the responder ranking.
package ranking

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilianp07/vendpoint/core/model"
)

// decodeRanking accepts either a bare list of candidates or an object with a
// candidates field.
func decodeRanking(raw []byte) ([]model.Candidate, error) {
	trimmed := strings.TrimSpace(string(raw))
	var cands []model.Candidate
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &cands); err != nil {
			return nil, fmt.Errorf("decode ranking: %w", err)
		}
		return cands, nil
	}
	var wrapped struct {
		Candidates []model.Candidate `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	return wrapped.Candidates, nil
}
