// Package scenarios replays scripted dispatch runs described in YAML files
// against the real engine and checks the folded outcome.
package scenarios

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/core/responder"
	"github.com/kilianp07/vendpoint/core/responder/respondertest"
)

// ResponderDef scripts one responder of the ranking.
type ResponderDef struct {
	UID     int     `yaml:"uid"`
	Hotkey  string  `yaml:"hotkey"`
	Rank    float64 `yaml:"rank"`
	DelayMS int     `yaml:"delay_ms"`
	Reply   string  `yaml:"reply"`
	// Fail is a failure reason name; empty means the responder answers.
	Fail  string `yaml:"fail,omitempty"`
	Error string `yaml:"error,omitempty"`
}

func (r ResponderDef) Candidate() model.Candidate {
	return model.Candidate{UID: r.UID, Hotkey: r.Hotkey, Rank: r.Rank}
}

func (r ResponderDef) Script() respondertest.Script {
	s := respondertest.Script{Delay: time.Duration(r.DelayMS) * time.Millisecond, Content: r.Reply}
	if r.Fail != "" {
		var reason model.FailureReason
		_ = reason.UnmarshalText([]byte(r.Fail))
		msg := r.Error
		if msg == "" {
			msg = r.Fail
		}
		s.Err = responder.Fail(reason, r.Hotkey, errors.New(msg))
	}
	return s
}

// RequestDef mirrors the knobs of a /chat call.
type RequestDef struct {
	TopK               int   `yaml:"top_k"`
	UIDs               []int `yaml:"uids"`
	Parallelism        int   `yaml:"parallelism"`
	Attempts           int   `yaml:"attempts"`
	TimeoutMS          int   `yaml:"timeout_ms"`
	StopOnFirstSuccess bool  `yaml:"stop_on_first_success"`
}

// Expected is compared against the outcome. Called is order insensitive.
type Expected struct {
	Successes int   `yaml:"successes"`
	Failures  int   `yaml:"failures"`
	Abandoned int   `yaml:"abandoned"`
	AllFailed bool  `yaml:"all_failed"`
	Stopped   bool  `yaml:"stopped"`
	Called    []int `yaml:"called,omitempty"`
	// Reasons counts failures per reason name.
	Reasons map[string]int `yaml:"reasons,omitempty"`
}

type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Responders  []ResponderDef `yaml:"responders"`
	Request     RequestDef     `yaml:"request"`
	Expected    Expected       `yaml:"expected"`
}

// Load reads and checks one scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario has no name", path)
	}
	if len(sc.Responders) == 0 {
		return nil, fmt.Errorf("%s: scenario has no responders", path)
	}
	return &sc, nil
}

// DispatchRequest builds the engine request of the scenario.
func (s *Scenario) DispatchRequest() dispatch.Request {
	r := s.Request
	req := dispatch.Request{
		CorrelationID:      "scenario-" + s.Name,
		Prompt:             []model.Message{{Role: model.RoleUser, Content: s.Name}},
		TopK:               r.TopK,
		Parallelism:        r.Parallelism,
		AttemptBudget:      r.Attempts,
		Timeout:            time.Duration(r.TimeoutMS) * time.Millisecond,
		StopOnFirstSuccess: r.StopOnFirstSuccess,
	}
	if req.Parallelism == 0 {
		req.Parallelism = 1
	}
	for _, uid := range r.UIDs {
		req.Candidates = append(req.Candidates, model.Candidate{UID: uid})
	}
	return req
}
