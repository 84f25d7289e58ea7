package ranking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vendpoint/core/directory"
	"github.com/kilianp07/vendpoint/core/factory"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/core/monitoring"
	"github.com/kilianp07/vendpoint/infra/mqtt"
)

type fakeConn struct{ closed bool }

func (f *fakeConn) Disconnect() { f.closed = true }

type recordMonitor struct {
	mu   sync.Mutex
	errs []error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) Flush(time.Duration) {}

func stubSubscribe(t *testing.T) (*fakeConn, *mqtt.Config, map[string]mqtt.Handler) {
	t.Helper()
	conn := &fakeConn{}
	var gotCfg mqtt.Config
	handlers := map[string]mqtt.Handler{}
	orig := subscribe
	subscribe = func(cfg mqtt.Config, subs map[string]mqtt.Handler) (disconnecter, error) {
		gotCfg = cfg
		for k, v := range subs {
			handlers[k] = v
		}
		return conn, nil
	}
	t.Cleanup(func() { subscribe = orig })
	return conn, &gotCfg, handlers
}

func TestMQTTSourceServesLatestRanking(t *testing.T) {
	conn, cfg, handlers := stubSubscribe(t)
	src, err := directory.NewSource(factory.ModuleConfig{Type: "mqtt", Conf: map[string]any{
		"broker": "tcp://broker:1883",
		"qos":    1,
		"topic":  "net/ranking",
	}})
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, byte(1), cfg.QoS)
	require.Contains(t, handlers, "net/ranking")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err = src.Fetch(ctx)
	cancel()
	assert.ErrorIs(t, err, ErrNoRanking)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	handlers["net/ranking"]("net/ranking", []byte(`[{"uid":1,"rank":1},{"uid":2,"rank":2}]`))
	handlers["net/ranking"]("net/ranking", []byte(`[{"uid":5,"rank":3}]`))
	cands, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Candidate{{UID: 5, Rank: 3}}, cands)

	src.(*MQTTSource).Close()
	assert.True(t, conn.closed)
}

func TestMQTTSourceIgnoresBadPayload(t *testing.T) {
	_, _, handlers := stubSubscribe(t)
	mon := &recordMonitor{}
	monitoring.Init(mon)
	t.Cleanup(func() { monitoring.Init(monitoring.NopMonitor{}) })

	src, err := NewMQTTSource(MQTTConfig{})
	require.NoError(t, err)
	h := handlers["vendpoint/ranking"]
	require.NotNil(t, h)

	h("vendpoint/ranking", []byte(`[{"uid":4}]`))
	h("vendpoint/ranking", []byte(`not json`))
	cands, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Candidate{{UID: 4}}, cands)

	mon.mu.Lock()
	defer mon.mu.Unlock()
	require.Len(t, mon.errs, 1)
	assert.Equal(t, "ranking", mon.tags["component"])
}
