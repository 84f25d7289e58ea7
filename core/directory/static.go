package directory

import (
	"context"

	"github.com/kilianp07/vendpoint/core/factory"
	"github.com/kilianp07/vendpoint/core/model"
)

// StaticSource serves a fixed ranking from configuration.
type StaticSource struct {
	Candidates []model.Candidate `json:"candidates"`
}

func (s StaticSource) Fetch(context.Context) ([]model.Candidate, error) {
	out := make([]model.Candidate, len(s.Candidates))
	copy(out, s.Candidates)
	return out, nil
}

func init() {
	sources.MustRegister("static", func(conf map[string]any) (Source, error) {
		var s StaticSource
		if err := factory.Decode(conf, &s); err != nil {
			return nil, err
		}
		return s, nil
	})
}
