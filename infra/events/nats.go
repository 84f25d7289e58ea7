// Package events forwards gateway events to NATS subjects.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	coreevents "github.com/kilianp07/vendpoint/core/events"
	"github.com/kilianp07/vendpoint/core/logger"
	"github.com/kilianp07/vendpoint/internal/eventbus"
)

// Config holds the NATS connection settings. An empty URL disables the
// publisher.
type Config struct {
	URL           string `json:"url"`
	Name          string `json:"name"`
	SubjectPrefix string `json:"subject_prefix"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "vendpoint"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "vendpoint"
	}
}

// Enabled reports whether a server URL is configured.
func (c Config) Enabled() bool { return c.URL != "" }

type conn interface {
	Publish(subj string, data []byte) error
}

// Publisher writes every bus event as JSON on <prefix>.<event name>.
type Publisher struct {
	nc     conn
	prefix string
	log    logger.Logger
	close  func()
}

// NewPublisher connects to the NATS server in cfg.
func NewPublisher(cfg Config, log logger.Logger) (*Publisher, error) {
	cfg.SetDefaults()
	opts := []nats.Option{nats.Name(cfg.Name), nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
		log.Errorf("nats: %v", err)
	})}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect Nats: %w", err)
	}
	return &Publisher{nc: nc, prefix: strings.TrimSuffix(cfg.SubjectPrefix, "."), log: log, close: func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}}, nil
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(ev coreevents.Event) string {
	return p.prefix + "." + ev.Name()
}

// Publish encodes and sends one event.
func (p *Publisher) Publish(ev coreevents.Event) error {
	if ev == nil {
		return errors.New("nil event")
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Name(), err)
	}
	return p.nc.Publish(p.Subject(ev), b)
}

// Start forwards bus events until ctx is done or the bus is closed.
func (p *Publisher) Start(ctx context.Context, bus *eventbus.TypedBus[coreevents.Event]) {
	if bus == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := p.Publish(ev); err != nil {
					p.log.Warnf("nats publish %s: %v", ev.Name(), err)
				}
			}
		}
	}()
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}
