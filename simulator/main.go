// Command simulator runs a fleet of fake responders for local gateway runs.
// It serves every responder and the ranking over HTTP and can publish the
// ranking to an MQTT broker.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/vendpoint/infra/logger"
)

func main() {
	cfg := parseFlags()
	log := logger.New("simulator")
	if err := (&cfg).Validate(); err != nil {
		log.Errorf("invalid config: %v", err)
		os.Exit(1)
	}
	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	var tmpl map[int]ResponderTemplate
	if cfg.TemplateFile != "" {
		data, err := os.ReadFile(cfg.TemplateFile)
		if err == nil {
			tmpl, err = LoadTemplates(data)
		}
		if err != nil {
			log.Errorf("template file: %v", err)
			os.Exit(1)
		}
	}

	fleet := GenerateFleet(FleetConfig{
		Size:    cfg.Count,
		BaseURL: cfg.BaseURL,
		Defaults: Behaviour{
			Latency:    cfg.Latency,
			Jitter:     cfg.Jitter,
			FailRate:   cfg.FailRate,
			RejectRate: cfg.RejectRate,
		},
	}, tmpl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Broker != "" {
		cli, err := newMQTTClient(cfg.Broker)
		if err != nil {
			log.Errorf("mqtt: %v", err)
			os.Exit(1)
		}
		defer cli.Disconnect(250)
		go runRankingPublisher(ctx, cli, cfg.Topic, cfg.Interval, fleet, log)
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: NewHandler(fleet, log), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infof("serving %d responders on %s", len(fleet), cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("http: %v", err)
		os.Exit(1)
	}
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Addr, "addr", ":9100", "listen address")
	flag.StringVar(&cfg.BaseURL, "base-url", "", "public URL advertised in the ranking, defaults to http://localhost<addr>")
	flag.IntVar(&cfg.Count, "count", 16, "number of responders")
	flag.DurationVar(&cfg.Latency, "latency", 200*time.Millisecond, "base response latency")
	flag.DurationVar(&cfg.Jitter, "jitter", 300*time.Millisecond, "random extra latency")
	flag.Float64Var(&cfg.FailRate, "fail-rate", 0.05, "probability of an HTTP 503")
	flag.Float64Var(&cfg.RejectRate, "reject-rate", 0.05, "probability of an empty completion")
	flag.StringVar(&cfg.Broker, "broker", "", "MQTT broker URL for ranking publication")
	flag.StringVar(&cfg.Topic, "topic", "vendpoint/ranking", "MQTT ranking topic")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "ranking publish interval")
	flag.StringVar(&cfg.TemplateFile, "template-file", "", "per uid overrides as JSON")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable gin debug output")
	flag.Parse()
	return cfg
}
