package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vendpoint/core/ledger"
)

func TestOwnKeysAreScoped(t *testing.T) {
	f := newFixture(t, nil)
	alice, bob := userToken(t, "alice"), userToken(t, "bob")
	operator := f.newKey(t, ledger.NewKey{Name: "operator"})

	rr := f.do(t, http.MethodPost, "/keys", alice, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decode[ledger.APIKey](t, rr)
	assert.Equal(t, "New API Key", first.Name)
	assert.Equal(t, "alice", first.UserID)
	assert.Equal(t, ledger.Unlimited, first.Credits)

	rr = f.do(t, http.MethodPost, "/keys", alice, map[string]any{"name": "laptop", "credits": 1000})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	second := decode[ledger.APIKey](t, rr)
	assert.Equal(t, "laptop", second.Name)
	assert.Equal(t, ledger.Unlimited, second.Credits, "credits are operator-only")

	rr = f.do(t, http.MethodGet, "/keys", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	keys := decode[[]ledger.APIKey](t, rr)
	require.Len(t, keys, 2)
	assert.Equal(t, second.ID, keys[0].ID)

	rr = f.do(t, http.MethodGet, "/keys", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]ledger.APIKey](t, rr))

	rr = f.do(t, http.MethodPatch, "/keys/"+first.Key, alice, map[string]any{"name": "desktop"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "desktop", decode[ledger.APIKey](t, rr).Name)

	for _, path := range []string{fmt.Sprintf("/keys/%d", first.ID), fmt.Sprintf("/keys/%d", operator.ID)} {
		rr = f.do(t, http.MethodPatch, path, bob, map[string]any{"name": "stolen"})
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		rr = f.do(t, http.MethodDelete, path, bob, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}

	rr = f.do(t, http.MethodDelete, fmt.Sprintf("/keys/%d", first.ID), alice, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, err := f.keys.Get(context.Background(), first.Key)
	assert.ErrorIs(t, err, ledger.ErrKeyNotFound)
	_, err = f.keys.Get(context.Background(), operator.Key)
	assert.NoError(t, err)
}

func TestOwnKeysNeedUserToken(t *testing.T) {
	f := newFixture(t, nil)
	k := f.newKey(t, ledger.NewKey{})
	for _, tok := range []string{"", k.Key, adminToken(t)} {
		rr := f.do(t, http.MethodGet, "/keys", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	f = newFixture(t, func(d *Deps) { d.UserSecret = "" })
	rr := f.do(t, http.MethodGet, "/keys", userToken(t, "alice"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminUsers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.keys.EnsureUser(ctx, "alice")
	require.NoError(t, err)

	rr := f.do(t, http.MethodGet, "/admin/users", userToken(t, "alice"), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code, "plain users are not admins")

	rr = f.do(t, http.MethodPatch, "/admin/users/alice", adminToken(t), map[string]any{"is_admin": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[ledger.User](t, rr).IsAdmin)

	rr = f.do(t, http.MethodGet, "/admin/users", userToken(t, "alice"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	users := decode[[]ledger.User](t, rr)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].ID)

	rr = f.do(t, http.MethodGet, "/admin/keys", userToken(t, "alice"), nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodPatch, "/admin/users/nobody", adminToken(t), map[string]any{"is_admin": true})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
