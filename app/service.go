package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kilianp07/vendpoint/api"
	"github.com/kilianp07/vendpoint/config"
	"github.com/kilianp07/vendpoint/core/directory"
	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/events"
	"github.com/kilianp07/vendpoint/core/ledger"
	coremetrics "github.com/kilianp07/vendpoint/core/metrics"
	"github.com/kilianp07/vendpoint/core/monitoring"
	"github.com/kilianp07/vendpoint/core/ratelimit"
	"github.com/kilianp07/vendpoint/core/requestlog"
	infraevents "github.com/kilianp07/vendpoint/infra/events"
	"github.com/kilianp07/vendpoint/infra/logger"
	"github.com/kilianp07/vendpoint/infra/metrics"
	inframon "github.com/kilianp07/vendpoint/infra/monitoring"
	_ "github.com/kilianp07/vendpoint/infra/ranking"
	infrarl "github.com/kilianp07/vendpoint/infra/ratelimit"
	"github.com/kilianp07/vendpoint/infra/responder"
	"github.com/kilianp07/vendpoint/infra/store"
	"github.com/kilianp07/vendpoint/internal/eventbus"
)

// Service wires the gateway: ranking sync, dispatch engine, key ledger,
// request log and the HTTP API.
type Service struct {
	cfg      *config.Config
	Engine   *dispatch.Engine
	Syncer   *directory.Syncer
	Keys     *store.SQLiteStore
	Recorder *requestlog.Recorder
	handler  http.Handler
	bus      *eventbus.TypedBus[events.Event]
	sink     coremetrics.MetricsSink
	source   directory.Source
	redis    *redis.Client
	nats     *infraevents.Publisher
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(mon)

	svc := &Service{cfg: cfg, bus: eventbus.NewTyped[events.Event](), log: logg}
	if err := svc.build(); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) build() error {
	cfg := s.cfg

	src, err := directory.NewSource(cfg.Directory.Source)
	if err != nil {
		return fmt.Errorf("ranking source: %w", err)
	}
	s.source = src
	s.Syncer, err = directory.NewSyncer(src, cfg.Directory, logger.New("directory"), s.bus)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}

	client := responder.NewHTTPClient(cfg.Responder, nil)
	s.Engine, err = dispatch.NewEngine(client, s.Syncer, logger.New("dispatch"), s.bus)
	if err != nil {
		return fmt.Errorf("dispatch engine: %w", err)
	}

	s.Keys, err = store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("key store: %w", err)
	}

	logs, err := requestlog.Open(cfg.RequestLog)
	if err != nil {
		return fmt.Errorf("request log: %w", err)
	}
	s.Recorder = requestlog.NewRecorder(logs, cfg.RequestLog.Workers, cfg.RequestLog.PromptSnapshot, logger.New("requestlog"))

	limiter, err := s.limiter()
	if err != nil {
		return err
	}

	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}

	if cfg.NATS.Enabled() {
		s.nats, err = infraevents.NewPublisher(cfg.NATS, logger.New("nats"))
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
	}

	s.handler = api.NewRouter(api.Deps{
		Engine:       s.Engine,
		Directory:    s.Syncer,
		Auth:         ledger.NewAuthenticator(s.Keys, int64(cfg.Dispatch.CreditCost)),
		Keys:         s.Keys,
		Ledger:       s.Keys,
		Limiter:      limiter,
		GlobalLimits: cfg.RateLimit.Global,
		Recorder:     s.Recorder,
		Logs:         logs,
		Dispatch:     cfg.Dispatch,
		AdminSecret:  cfg.Server.AdminSecret,
		Users:        s.Keys,
		UserSecret:   cfg.Server.UserSecret,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Log:          logger.New("api"),
	})
	return nil
}

func (s *Service) limiter() (ratelimit.Limiter, error) {
	rl := s.cfg.RateLimit
	switch rl.Backend {
	case "none":
		return nil, nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l, client, err := infrarl.NewRedisLimiter(ctx, rl.Redis)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		s.redis = client
		return l, nil
	default:
		return ratelimit.NewMemoryLimiter(), nil
	}
}

// Handler returns the HTTP handler serving the API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run starts the background loops and serves the API until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.Syncer.Run(ctx)
	metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics"))
	if s.nats != nil {
		s.nats.Start(ctx, s.bus)
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases resources held by the service. Queued log writes are
// flushed before the stores close.
func (s *Service) Close() error {
	var errs []error
	if s.Recorder != nil {
		errs = append(errs, s.Recorder.Close())
	}
	if s.Keys != nil {
		errs = append(errs, s.Keys.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.nats != nil {
		s.nats.Close()
	}
	if c, ok := s.source.(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.bus.Close()
	monitoring.Flush(2 * time.Second)
	return errors.Join(errs...)
}
