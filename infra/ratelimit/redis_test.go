package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	core "github.com/kilianp07/vendpoint/core/ratelimit"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	if testing.Short() {
		t.Skip("short mode")
	}
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisLimiter(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()
	l, client, err := NewRedisLimiter(ctx, Config{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	fixed := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return fixed }
	rules := []core.Rule{{Times: 2, Seconds: 60}}

	require.NoError(t, l.Allow(ctx, "key-a", rules))
	require.NoError(t, l.Allow(ctx, "key-a", rules))
	err = l.Allow(ctx, "key-a", rules)
	require.ErrorIs(t, err, core.ErrLimited)
	var le *core.LimitedError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, rules[0], le.Rule)
	assert.Equal(t, 40*time.Second, le.RetryAfter)

	assert.NoError(t, l.Allow(ctx, "key-b", rules), "identities are independent")

	idx, _ := core.Window(fixed, rules[0])
	ttl, err := client.TTL(ctx, core.Key("vendpoint:rl", "key-a", rules[0], idx)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	l.now = func() time.Time { return fixed.Add(time.Minute) }
	assert.NoError(t, l.Allow(ctx, "key-a", rules), "next window resets")
}

func TestRedisLimiterUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err := NewRedisLimiter(ctx, Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisLimiterNoRules(t *testing.T) {
	l := NewRedisLimiterWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "")
	assert.NoError(t, l.Allow(context.Background(), "k", nil))
}
