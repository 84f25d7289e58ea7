package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Addr       string
	BaseURL    string
	Count      int
	Latency    time.Duration
	Jitter     time.Duration
	FailRate   float64
	RejectRate float64
	// Broker and Topic enable retained ranking publication over MQTT.
	Broker       string
	Topic        string
	Interval     time.Duration
	TemplateFile string
	Verbose      bool
}

// Validate rejects settings the fleet cannot honour.
func (c *Config) Validate() error {
	if c.Count < 1 {
		return fmt.Errorf("count must be >= 1")
	}
	if c.FailRate < 0 || c.FailRate > 1 || c.RejectRate < 0 || c.RejectRate > 1 {
		return fmt.Errorf("rates must be within [0,1]")
	}
	if c.Latency < 0 || c.Jitter < 0 {
		return fmt.Errorf("latency and jitter must not be negative")
	}
	if c.Broker != "" && c.Topic == "" {
		return fmt.Errorf("topic is required with a broker")
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost" + c.Addr
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	return nil
}
