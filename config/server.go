package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/vendpoint/core/ratelimit"
	infrarl "github.com/kilianp07/vendpoint/infra/ratelimit"
)

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Addr string `json:"addr"`
	// AdminSecret signs admin tokens; admin routes are disabled when empty.
	AdminSecret string `json:"admin_secret"`
	// UserSecret signs user tokens; /conversation and /keys are disabled
	// when empty.
	UserSecret string `json:"user_secret"`
	// CORSOrigins lists allowed browser origins. "*" allows any and an
	// empty list disables CORS headers.
	CORSOrigins            []string `json:"cors_origins"`
	ShutdownTimeoutSeconds int      `json:"shutdown_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		c.ShutdownTimeoutSeconds = 10
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"*"}
	}
}

func (c ServerConfig) Validate() error {
	if c.AdminSecret != "" && len(c.AdminSecret) < 16 {
		return fmt.Errorf("server.admin_secret must be at least 16 characters")
	}
	if c.UserSecret != "" && len(c.UserSecret) < 16 {
		return fmt.Errorf("server.user_secret must be at least 16 characters")
	}
	for _, o := range c.CORSOrigins {
		switch {
		case o == "*" && len(c.CORSOrigins) == 1:
		case strings.HasPrefix(o, "http://"), strings.HasPrefix(o, "https://"):
		default:
			return fmt.Errorf("server.cors_origins: invalid origin %q", o)
		}
	}
	return nil
}

// ShutdownTimeout is the grace period for in-flight requests.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// RateLimitConfig selects the limiter backend and the global rules.
type RateLimitConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend string           `json:"backend"`
	Redis   infrarl.Config   `json:"redis"`
	Global  []ratelimit.Rule `json:"global"`
}

// SetDefaults applies sane defaults.
func (c *RateLimitConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	c.Redis.SetDefaults()
}

func (c RateLimitConfig) Validate() error {
	switch c.Backend {
	case "memory", "none":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("rate_limit.redis.addr is required")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %s", c.Backend)
	}
	for _, r := range c.Global {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rate_limit.global: %w", err)
		}
	}
	return nil
}
