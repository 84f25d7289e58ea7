package ranking

import (
	"context"
	"errors"
	"sync"

	"github.com/kilianp07/vendpoint/core/directory"
	"github.com/kilianp07/vendpoint/core/factory"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/core/monitoring"
	"github.com/kilianp07/vendpoint/infra/logger"
	"github.com/kilianp07/vendpoint/infra/mqtt"
)

// ErrNoRanking is returned until the first ranking arrives.
var ErrNoRanking = errors.New("no ranking received yet")

// MQTTConfig configures the MQTT ranking source. Topic should be published
// with the retained flag so a fresh subscriber receives the last ranking.
type MQTTConfig struct {
	mqtt.Config `json:",squash"`
	Topic       string `json:"topic"`
}

type disconnecter interface{ Disconnect() }

var subscribe = func(cfg mqtt.Config, subs map[string]mqtt.Handler) (disconnecter, error) {
	return mqtt.NewSubscriber(cfg, subs)
}

// MQTTSource serves the last ranking published on a topic.
type MQTTSource struct {
	conn   disconnecter
	log    logger.Logger
	mu     sync.RWMutex
	latest []model.Candidate
	ready  chan struct{}
	once   sync.Once
}

// NewMQTTSource subscribes to cfg.Topic.
func NewMQTTSource(cfg MQTTConfig) (*MQTTSource, error) {
	if cfg.Topic == "" {
		cfg.Topic = "vendpoint/ranking"
	}
	s := &MQTTSource{log: logger.New("ranking_mqtt"), ready: make(chan struct{})}
	conn, err := subscribe(cfg.Config, map[string]mqtt.Handler{cfg.Topic: s.onRanking})
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func (s *MQTTSource) onRanking(topic string, payload []byte) {
	cands, err := decodeRanking(payload)
	if err != nil {
		s.log.Errorf("ignoring ranking on %s: %v", topic, err)
		monitoring.CaptureException(err, map[string]string{"component": "ranking", "topic": topic})
		return
	}
	s.mu.Lock()
	s.latest = cands
	s.mu.Unlock()
	s.once.Do(func() { close(s.ready) })
}

// Fetch waits for the first ranking or until ctx is done.
func (s *MQTTSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, errors.Join(ErrNoRanking, ctx.Err())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Candidate, len(s.latest))
	copy(out, s.latest)
	return out, nil
}

// Close drops the broker connection.
func (s *MQTTSource) Close() {
	if s.conn != nil {
		s.conn.Disconnect()
	}
}

func init() {
	if err := directory.RegisterSource("mqtt", func(conf map[string]any) (directory.Source, error) {
		var c MQTTConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewMQTTSource(c)
	}); err != nil {
		panic(err)
	}
}
