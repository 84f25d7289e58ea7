package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/ledger"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/core/ratelimit"
	"github.com/kilianp07/vendpoint/core/requestlog"
	"github.com/kilianp07/vendpoint/infra/logger"
	"github.com/kilianp07/vendpoint/infra/store"
)

const (
	testSecret     = "test-secret"
	testUserSecret = "test-user-secret"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeRunner struct {
	mu    sync.Mutex
	got   []dispatch.Request
	out   dispatch.Outcome
	err   error
	panic any
}

func (f *fakeRunner) Run(_ context.Context, req dispatch.Request) (dispatch.Outcome, error) {
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()
	if f.panic != nil {
		panic(f.panic)
	}
	return f.out, f.err
}

func (f *fakeRunner) calls() []dispatch.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatch.Request(nil), f.got...)
}

type fakeDir struct{ synced bool }

func (d fakeDir) Synced() bool { return d.synced }

func (d fakeDir) Resolve(uids []int) []model.Candidate {
	out := make([]model.Candidate, len(uids))
	for i, uid := range uids {
		out[i] = model.Candidate{UID: uid, Hotkey: fmt.Sprintf("hk%d", uid)}
	}
	return out
}

type fixture struct {
	router *gin.Engine
	keys   *store.SQLiteStore
	runner *fakeRunner
	logs   requestlog.Store
	rec    *requestlog.Recorder
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	dir := t.TempDir()
	keys, err := store.NewSQLiteStore(filepath.Join(dir, "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = keys.Close() })
	logs, err := requestlog.NewJSONLStore(filepath.Join(dir, "requests.jsonl"))
	require.NoError(t, err)
	rec := requestlog.NewRecorder(logs, 2, true, logger.NopLogger{})

	cfg := dispatch.Config{}
	cfg.SetDefaults()
	runner := &fakeRunner{}
	d := Deps{
		Engine:      runner,
		Directory:   fakeDir{synced: true},
		Auth:        ledger.NewAuthenticator(keys, int64(cfg.CreditCost)),
		Keys:        keys,
		Ledger:      keys,
		Limiter:     ratelimit.NewMemoryLimiter(),
		Recorder:    rec,
		Logs:        logs,
		Dispatch:    cfg,
		AdminSecret: testSecret,
		Users:       keys,
		UserSecret:  testUserSecret,
		CORSOrigins: []string{"*"},
		Log:         logger.NopLogger{},
	}
	if mutate != nil {
		mutate(&d)
	}
	return &fixture{router: NewRouter(d), keys: keys, runner: runner, logs: logs, rec: rec}
}

func (f *fixture) newKey(t *testing.T, nk ledger.NewKey) ledger.APIKey {
	t.Helper()
	k, err := f.keys.Create(context.Background(), nk)
	require.NoError(t, err)
	return k
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func ptr[T any](v T) *T { return &v }

var hello = map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}}

func adminToken(t *testing.T) string {
	t.Helper()
	tok, err := IssueAdminToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	return tok
}

func userToken(t *testing.T, id string) string {
	t.Helper()
	tok, err := IssueUserToken(testUserSecret, id, time.Hour)
	require.NoError(t, err)
	return tok
}
