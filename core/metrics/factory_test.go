package metrics_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/vendpoint/core/factory"
	metrics "github.com/kilianp07/vendpoint/core/metrics"
	inframetrics "github.com/kilianp07/vendpoint/infra/metrics"
)

/*
TestMetricsFactory_Builtins verifies registration via infra/metrics/factory.go.

	Cases:
	- instantiate builtin nop sink
	- unknown type returns error
*/
func TestMetricsFactory_Builtins(t *testing.T) {
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if s == nil {
		t.Fatal("expected sink instance")
	}
	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

/*
TestNewMetricsSink_Multi validates NewMetricsSink behavior with zero, one, and multiple configs.
Cases:
  - no config -> NopSink
  - two configs -> MultiSink with two sub-sinks
*/
func TestNewMetricsSink_Multi(t *testing.T) {
	// No config defaults to NopSink
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	// Multiple configs returns MultiSink
	cfgs := []factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}}
	s, err = metrics.NewMetricsSink(cfgs)
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}
}

func TestNewMetricsSink_ErrorNamesEntry(t *testing.T) {
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "missing"}})
	if err == nil {
		t.Fatal("expected error for unknown second sink")
	}
	if !strings.Contains(err.Error(), `sink 1 ("missing")`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestNewMetricsSink_FromYAML builds the sinks of a gateway config file.
func TestNewMetricsSink_FromYAML(t *testing.T) {
	influx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"influxdb","message":"ready","status":"pass","checks":[]}`))
	}))
	defer influx.Close()

	data := fmt.Sprintf(`prometheus_addr: ":9090"
sinks:
  - type: prometheus
  - type: influx
    conf:
      url: %q
      token: t0ken
      org: gateway
      bucket: responders
`, influx.URL)
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(data), &raw); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	var cfg metrics.Config
	if err := factory.Decode(raw, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.PrometheusAddr != ":9090" || len(cfg.Sinks) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Sinks[1].Conf["bucket"] != "responders" {
		t.Fatalf("influx conf not decoded: %+v", cfg.Sinks[1].Conf)
	}

	s, err := metrics.NewMetricsSink(cfg.Sinks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	defer m.Close()
	if _, ok := m.Sinks[0].(*inframetrics.PromSink); !ok {
		t.Errorf("expected PromSink, got %T", m.Sinks[0])
	}
	if _, ok := m.Sinks[1].(*inframetrics.InfluxSink); !ok {
		t.Errorf("expected InfluxSink, got %T", m.Sinks[1])
	}
}

// TestNewMetricsSink_InfluxDown falls back to a nop sink when the health
// check fails.
func TestNewMetricsSink_InfluxDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"url": url}}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
}
