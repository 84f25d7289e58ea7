package metrics

import "github.com/kilianp07/vendpoint/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr serves /metrics when not empty, e.g. ":9090".
	PrometheusAddr string `json:"prometheus_addr"`
}
