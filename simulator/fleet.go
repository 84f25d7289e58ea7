package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/vendpoint/core/model"
)

var fleetRng = rand.New(rand.NewSource(time.Now().UnixNano()))

// SimulatedResponder is one fake backend of the fleet.
type SimulatedResponder struct {
	UID       int
	Hotkey    string
	Rank      float64
	Endpoint  string
	Reply     string
	Behaviour Behaviour
}

// Candidate is the ranking entry advertised for the responder.
func (r SimulatedResponder) Candidate() model.Candidate {
	return model.Candidate{UID: r.UID, Hotkey: r.Hotkey, Endpoint: r.Endpoint, Rank: r.Rank}
}

// ResponderTemplate overrides generated values for one uid.
type ResponderTemplate struct {
	Hotkey     string   `json:"hotkey"`
	Reply      string   `json:"reply"`
	Rank       *float64 `json:"rank"`
	LatencyMS  *int     `json:"latency_ms"`
	FailRate   *float64 `json:"fail_rate"`
	RejectRate *float64 `json:"reject_rate"`
}

// FleetConfig holds parameters for fleet generation.
type FleetConfig struct {
	Size     int
	BaseURL  string
	Defaults Behaviour
}

// GenerateFleet creates Size responders with uids 0..Size-1 and random ranks.
func GenerateFleet(cfg FleetConfig, tmpl map[int]ResponderTemplate) []SimulatedResponder {
	if cfg.Size <= 0 {
		return nil
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	rs := make([]SimulatedResponder, cfg.Size)
	for uid := 0; uid < cfg.Size; uid++ {
		r := SimulatedResponder{
			UID:       uid,
			Hotkey:    fmt.Sprintf("5Sim%04d", uid),
			Rank:      fleetRng.Float64(),
			Endpoint:  base + "/responders/" + strconv.Itoa(uid),
			Behaviour: cfg.Defaults,
		}
		if t, ok := tmpl[uid]; ok {
			applyTemplate(&r, t)
		}
		rs[uid] = r
	}
	return rs
}

func applyTemplate(r *SimulatedResponder, t ResponderTemplate) {
	if t.Hotkey != "" {
		r.Hotkey = t.Hotkey
	}
	r.Reply = t.Reply
	if t.Rank != nil {
		r.Rank = *t.Rank
	}
	if t.LatencyMS != nil {
		r.Behaviour.Latency = time.Duration(*t.LatencyMS) * time.Millisecond
	}
	if t.FailRate != nil {
		r.Behaviour.FailRate = *t.FailRate
	}
	if t.RejectRate != nil {
		r.Behaviour.RejectRate = *t.RejectRate
	}
}

// Ranking lists the fleet as candidates ordered by descending rank.
func Ranking(fleet []SimulatedResponder) []model.Candidate {
	out := make([]model.Candidate, len(fleet))
	for i, r := range fleet {
		out[i] = r.Candidate()
	}
	model.SortByRank(out)
	return out
}

// LoadTemplates reads per uid overrides keyed by the decimal uid.
func LoadTemplates(data []byte) (map[int]ResponderTemplate, error) {
	var raw map[string]ResponderTemplate
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[int]ResponderTemplate, len(raw))
	for k, v := range raw {
		uid, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("template key %q is not a uid", k)
		}
		out[uid] = v
	}
	return out, nil
}
