// Package config loads the gateway configuration from a YAML or JSON file
// with VEP_ environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/vendpoint/core/directory"
	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/metrics"
	"github.com/kilianp07/vendpoint/core/requestlog"
	"github.com/kilianp07/vendpoint/infra/events"
	"github.com/kilianp07/vendpoint/infra/monitoring"
	"github.com/kilianp07/vendpoint/infra/responder"
	"github.com/kilianp07/vendpoint/infra/store"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore: VEP_DISPATCH__TOP_K=8.
const EnvPrefix = "VEP_"

type Config struct {
	Server     ServerConfig      `json:"server"`
	Dispatch   dispatch.Config   `json:"dispatch"`
	Directory  directory.Config  `json:"directory"`
	Responder  responder.Config  `json:"responder"`
	Store      store.Config      `json:"store"`
	RequestLog requestlog.Config `json:"request_log"`
	RateLimit  RateLimitConfig   `json:"rate_limit"`
	Metrics    metrics.Config    `json:"metrics"`
	NATS       events.Config     `json:"nats"`
	Sentry     monitoring.Config `json:"sentry"`
}

// Load reads path, applies environment overrides, fills defaults and
// validates every section. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills zero values of every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Directory.SetDefaults()
	c.Responder.SetDefaults()
	c.Store.SetDefaults()
	c.RequestLog.SetDefaults()
	c.RateLimit.SetDefaults()
	c.NATS.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		c.Server, c.Dispatch, c.Responder, c.RequestLog, c.RateLimit,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
