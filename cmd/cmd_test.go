package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vendpoint/api"
	"github.com/kilianp07/vendpoint/core/ledger"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/core/ratelimit"
	"github.com/kilianp07/vendpoint/core/requestlog"
)

// execute runs the root command once and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	body = strings.ReplaceAll(body, "{dir}", dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

func TestParseMessages(t *testing.T) {
	msgs, err := parseMessages([]string{"system:be brief", "User: hi: there"})
	require.NoError(t, err)
	assert.Equal(t, []model.Message{
		{Role: model.RoleSystem, Content: "be brief"},
		{Role: model.RoleUser, Content: " hi: there"},
	}, msgs)

	for _, bad := range []string{"no separator", "robot:hello"} {
		_, err := parseMessages([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		in      string
		want    ratelimit.Rule
		wantErr bool
	}{
		{in: "100/60", want: ratelimit.Rule{Times: 100, Seconds: 60}},
		{in: "5/1s", want: ratelimit.Rule{Times: 5, Seconds: 1}},
		{in: "0/60", wantErr: true},
		{in: "ten/60", wantErr: true},
		{in: "100", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRule(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExpiry(t *testing.T) {
	v, err := parseExpiry("never")
	require.NoError(t, err)
	assert.Equal(t, ledger.NeverExpires, v)

	v, err = parseExpiry("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), v)

	v, err = parseExpiry("2024-01-02T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Unix(), v)

	_, err = parseExpiry("tomorrow")
	assert.Error(t, err)
}

func TestKeyLifecycle(t *testing.T) {
	cfg, _ := writeConfig(t, `store:
  path: "{dir}/keys.db"
request_log:
  path: "{dir}/requests.log"
`)

	out, err := execute(t, "key", "create", "-c", cfg, "--name", "ci", "--credits", "10")
	require.NoError(t, err)
	var created ledger.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "ci", created.Name)
	assert.Equal(t, int64(10), created.Credits)
	assert.Equal(t, ledger.NeverExpires, created.ValidUntil)
	assert.True(t, created.Enabled)
	assert.NotEmpty(t, created.Key)

	id := strconv.FormatInt(created.ID, 10)
	out, err = execute(t, "ratelimit", "set", "-c", cfg, id, "10/1", "1000/3600")
	require.NoError(t, err)
	var limited ledger.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &limited))
	assert.True(t, limited.RateLimitsEnabled)
	assert.Equal(t, []ratelimit.Rule{{Times: 10, Seconds: 1}, {Times: 1000, Seconds: 3600}}, limited.RateLimits)

	out, err = execute(t, "ratelimit", "disable", "-c", cfg, created.Key)
	require.NoError(t, err)
	var disabled ledger.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &disabled))
	assert.False(t, disabled.RateLimitsEnabled)
	assert.Len(t, disabled.RateLimits, 2)

	out, err = execute(t, "key", "list", "-c", cfg)
	require.NoError(t, err)
	var keys []ledger.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	require.Len(t, keys, 1)
	assert.Equal(t, created.ID, keys[0].ID)

	out, err = execute(t, "key", "delete", "-c", cfg, id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+id)

	_, err = execute(t, "key", "get", "-c", cfg, id)
	assert.ErrorIs(t, err, ledger.ErrKeyNotFound)
}

func TestLogsStats(t *testing.T) {
	cfg, dir := writeConfig(t, `request_log:
  path: "{dir}/requests.log"
`)
	st, err := requestlog.NewJSONLStore(filepath.Join(dir, "requests.log"))
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, st.Append(context.Background(),
		requestlog.Record{Timestamp: now, UID: 1, Success: true, LatencyMS: 10},
		requestlog.Record{Timestamp: now, UID: 2, Reason: "timeout", LatencyMS: 30},
	))

	out, err := execute(t, "logs", "stats", "-c", cfg)
	require.NoError(t, err)
	var stats requestlog.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 1, stats.ByReason["timeout"])
}

func TestQueryCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"completion":    "hello back",
			"is_completion": true,
			"dest_hotkey":   "hk",
		})
	}))
	defer srv.Close()

	cfg, _ := writeConfig(t, fmt.Sprintf(`directory:
  source:
    type: static
    conf:
      candidates:
        - {uid: 1, endpoint: %q, rank: 2}
        - {uid: 2, endpoint: %q, rank: 1}
        - {uid: 3, rank: 0.5}
store:
  path: "{dir}/keys.db"
`, srv.URL, srv.URL))

	out, err := execute(t, "query", "-c", cfg, "-m", "user:hi", "--top-k", "2")
	require.NoError(t, err)
	var resp struct {
		Choices []struct {
			UID     int `json:"uid"`
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		FailedResponses []json.RawMessage `json:"failed_responses"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Choices, 2)
	assert.Empty(t, resp.FailedResponses)
	uids := []int{resp.Choices[0].UID, resp.Choices[1].UID}
	assert.ElementsMatch(t, []int{1, 2}, uids)
	assert.Equal(t, "hello back", resp.Choices[0].Message.Content)
}

func TestAdminToken(t *testing.T) {
	const secret = "0123456789abcdef0123"
	cfg, _ := writeConfig(t, "server:\n  admin_secret: \""+secret+"\"\n")

	out, err := execute(t, "admin", "token", "-c", cfg, "--subject", "ops")
	require.NoError(t, err)
	claims, err := api.ParseAdminToken(secret, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, api.AdminRole, claims.Role)
	assert.Equal(t, "ops", claims.Subject)
}

func TestUserCommands(t *testing.T) {
	const secret = "fedcba9876543210fedcba"
	cfg, _ := writeConfig(t, `server:
  user_secret: "`+secret+`"
store:
  path: "{dir}/keys.db"
`)

	out, err := execute(t, "user", "token", "-c", cfg, "alice")
	require.NoError(t, err)
	claims, err := api.ParseUserToken(secret, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	out, err = execute(t, "key", "create", "-c", cfg, "--user", "bob")
	require.NoError(t, err)
	var owned ledger.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &owned))
	assert.Equal(t, "bob", owned.UserID)

	out, err = execute(t, "user", "edit", "-c", cfg, "alice", "--is-admin")
	require.NoError(t, err)
	var edited ledger.User
	require.NoError(t, json.Unmarshal([]byte(out), &edited))
	assert.True(t, edited.IsAdmin)

	out, err = execute(t, "user", "list", "-c", cfg)
	require.NoError(t, err)
	var users []ledger.User
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 2)
	admins := map[string]bool{}
	for _, u := range users {
		admins[u.ID] = u.IsAdmin
	}
	assert.Equal(t, map[string]bool{"alice": true, "bob": false}, admins)
}
