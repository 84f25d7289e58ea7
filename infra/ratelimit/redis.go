// Package ratelimit provides a Redis backed limiter shared by gateway replicas.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	core "github.com/kilianp07/vendpoint/core/ratelimit"
)

// Config describes the Redis connection.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Prefix == "" {
		c.Prefix = "vendpoint:rl"
	}
}

// RedisLimiter counts fixed windows with INCR and EXPIRE.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(ctx context.Context, cfg Config) (*RedisLimiter, *redis.Client, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisLimiterWithClient(client, cfg.Prefix), client, nil
}

// NewRedisLimiterWithClient wraps an existing client.
func NewRedisLimiterWithClient(client redis.Cmdable, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "vendpoint:rl"
	}
	return &RedisLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, identity string, rules []core.Rule) error {
	if len(rules) == 0 {
		return nil
	}
	now := l.now()
	type window struct {
		rule core.Rule
		left time.Duration
		incr *redis.IntCmd
	}
	windows := make([]window, 0, len(rules))
	pipe := l.client.TxPipeline()
	for _, r := range rules {
		idx, left := core.Window(now, r)
		k := core.Key(l.prefix, identity, r, idx)
		w := window{rule: r, left: left, incr: pipe.Incr(ctx, k)}
		pipe.Expire(ctx, k, left+time.Second)
		windows = append(windows, w)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rate limit counters: %w", err)
	}
	for _, w := range windows {
		if w.incr.Val() > int64(w.rule.Times) {
			return &core.LimitedError{Rule: w.rule, RetryAfter: w.left}
		}
	}
	return nil
}
