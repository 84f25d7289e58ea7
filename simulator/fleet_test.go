package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFleet(t *testing.T) {
	fleetRng = rand.New(rand.NewSource(1))
	fs := GenerateFleet(FleetConfig{Size: 5, BaseURL: "http://sim:9100/"}, nil)
	require.Len(t, fs, 5)
	assert.Equal(t, 0, fs[0].UID)
	assert.Equal(t, "5Sim0004", fs[4].Hotkey)
	assert.Equal(t, "http://sim:9100/responders/3", fs[3].Endpoint)
	for _, r := range fs {
		assert.GreaterOrEqual(t, r.Rank, 0.0)
		assert.Less(t, r.Rank, 1.0)
	}
	assert.Nil(t, GenerateFleet(FleetConfig{}, nil))
}

func TestGenerateFleetTemplate(t *testing.T) {
	tmpl, err := LoadTemplates([]byte(`{"1":{"hotkey":"vip","rank":9,"latency_ms":5,"fail_rate":1,"reply":"fixed"}}`))
	require.NoError(t, err)
	fs := GenerateFleet(FleetConfig{Size: 2, Defaults: Behaviour{RejectRate: 0.5}}, tmpl)

	assert.Equal(t, "vip", fs[1].Hotkey)
	assert.Equal(t, 9.0, fs[1].Rank)
	assert.Equal(t, "fixed", fs[1].Reply)
	assert.Equal(t, 5*time.Millisecond, fs[1].Behaviour.Latency)
	assert.Equal(t, 1.0, fs[1].Behaviour.FailRate)
	assert.Equal(t, 0.5, fs[1].Behaviour.RejectRate)
	assert.Equal(t, 0.0, fs[0].Behaviour.FailRate)

	_, err = LoadTemplates([]byte(`{"first":{}}`))
	assert.Error(t, err)
}

func TestRankingOrder(t *testing.T) {
	fs := []SimulatedResponder{{UID: 0, Rank: 0.1}, {UID: 1, Rank: 0.9}, {UID: 2, Rank: 0.5}}
	r := Ranking(fs)
	assert.Equal(t, []int{1, 2, 0}, []int{r[0].UID, r[1].UID, r[2].UID})
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Addr: ":9100", Count: 1}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:9100", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Interval)

	for _, bad := range []Config{
		{Count: 0},
		{Count: 1, FailRate: 2},
		{Count: 1, Latency: -time.Second},
		{Count: 1, Broker: "tcp://b:1883"},
	} {
		assert.Error(t, bad.Validate())
	}
}
