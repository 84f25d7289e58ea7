package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vendpoint/core/ratelimit"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `server:
  addr: ":9000"
  admin_secret: "0123456789abcdef"
dispatch:
  top_k: 8
  parallelism: 2
  stop_on_first_success: true
directory:
  interval_seconds: 30
  source:
    type: http
    conf:
      url: "http://ranker.local/ranking"
responder:
  default_endpoint: "http://responders.local"
  retry_count: 1
request_log:
  backend: sqlite
  path: "requests.db"
rate_limit:
  backend: redis
  redis:
    addr: "localhost:6379"
  global:
    - times: 10
      seconds: 60
metrics:
  prometheus_addr: ":9090"
  sinks:
    - type: prometheus
nats:
  url: "nats://localhost:4222"
sentry:
  environment: "test"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.addr", cfg.Server.Addr, ":9000"},
		{"dispatch.top_k", cfg.Dispatch.TopK, 8},
		{"dispatch.parallelism", cfg.Dispatch.Parallelism, 2},
		{"dispatch.stop", cfg.Dispatch.StopOnFirstSuccess, true},
		{"dispatch.timeout default", cfg.Dispatch.TimeoutMS, 60000},
		{"directory.interval", cfg.Directory.IntervalSeconds, 30},
		{"directory.source", cfg.Directory.Source.Type, "http"},
		{"directory.source.url", cfg.Directory.Source.Conf["url"], "http://ranker.local/ranking"},
		{"responder.endpoint", cfg.Responder.DefaultEndpoint, "http://responders.local"},
		{"responder.retry", cfg.Responder.RetryCount, 1},
		{"responder.path default", cfg.Responder.Path, "/prompting"},
		{"store.path default", cfg.Store.Path, "vendpoint.db"},
		{"request_log.backend", cfg.RequestLog.Backend, "sqlite"},
		{"rate_limit.backend", cfg.RateLimit.Backend, "redis"},
		{"rate_limit.global", cfg.RateLimit.Global, []ratelimit.Rule{{Times: 10, Seconds: 60}}},
		{"rate_limit.redis.prefix", cfg.RateLimit.Redis.Prefix, "vendpoint:rl"},
		{"metrics.sinks", len(cfg.Metrics.Sinks), 1},
		{"metrics.prom", cfg.Metrics.PrometheusAddr, ":9090"},
		{"nats.url", cfg.NATS.URL, "nats://localhost:4222"},
		{"nats.prefix", cfg.NATS.SubjectPrefix, "vendpoint"},
		{"sentry.env", cfg.Sentry.Environment, "test"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("VEP_DISPATCH__TOP_K", "3")
	t.Setenv("VEP_SERVER__ADDR", ":7000")
	t.Setenv("VEP_REQUEST_LOG__BACKEND", "rotating")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Dispatch.TopK)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "rotating", cfg.RequestLog.Backend)
	assert.Equal(t, 100, cfg.RequestLog.MaxSizeMB)
	assert.Equal(t, "static", cfg.Directory.Source.Type)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.NATS.Enabled())
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"dispatch": {"attempt_budget": 2}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Dispatch.AttemptBudget)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"format":        "",
		"parallelism":   "dispatch:\n  parallelism: 500\n",
		"backend":       "request_log:\n  backend: csv\n",
		"redis":         "rate_limit:\n  backend: redis\n",
		"rule":          "rate_limit:\n  global:\n    - times: 0\n      seconds: 1\n",
		"admin secret":  "server:\n  admin_secret: short\n",
		"user secret":   "server:\n  user_secret: short\n",
		"cors origin":   "server:\n  cors_origins: [\"app.example.com\"]\n",
		"cors wildcard": "server:\n  cors_origins: [\"*\", \"https://a.example.com\"]\n",
		"retry":         "responder:\n  retry_count: -1\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			file := "config.yaml"
			if name == "format" {
				file = "config.toml"
			}
			_, err := Load(writeFile(t, file, data))
			assert.Error(t, err)
		})
	}
}
