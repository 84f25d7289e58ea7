package dispatch

import (
	"fmt"
	"time"
)

// Config holds the defaults applied to inbound requests that omit a field,
// plus the limits they may not exceed.
type Config struct {
	TopK               int  `json:"top_k"`
	Parallelism        int  `json:"parallelism"`
	MaxParallelism     int  `json:"max_parallelism"`
	AttemptBudget      int  `json:"attempt_budget"`
	TimeoutMS          int  `json:"timeout_ms"`
	StopOnFirstSuccess bool `json:"stop_on_first_success"`
	// CreditCost is charged per successful choice.
	CreditCost int `json:"credit_cost"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 4
	}
	if c.Parallelism == 0 {
		c.Parallelism = 4
	}
	if c.MaxParallelism == 0 {
		c.MaxParallelism = 64
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 60_000
	}
	if c.CreditCost == 0 {
		c.CreditCost = 1
	}
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if c.Parallelism < 1 || c.Parallelism > c.MaxParallelism {
		return fmt.Errorf("dispatch.parallelism must be in [1,%d]", c.MaxParallelism)
	}
	if c.TopK < 0 || c.AttemptBudget < 0 || c.TimeoutMS < 0 || c.CreditCost < 0 {
		return fmt.Errorf("dispatch: negative values are not allowed")
	}
	return nil
}

// Timeout returns the default per sub-request timeout.
func (c Config) Timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }
