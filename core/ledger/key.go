// Package ledger holds API keys, the rules that admit a caller and the
// usage charged after each dispatch.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/kilianp07/vendpoint/core/ratelimit"
)

const (
	// Unlimited marks a key without a credit balance.
	Unlimited int64 = -1
	// NeverExpires marks a key without an expiry.
	NeverExpires int64 = -1
	// KeyBytes is the entropy of generated keys.
	KeyBytes = 48
)

var (
	ErrMissingKey          = errors.New("missing API key")
	ErrKeyNotFound         = errors.New("invalid API key")
	ErrKeyDisabled         = errors.New("API key is disabled")
	ErrKeyExpired          = errors.New("API key has expired")
	ErrInsufficientCredits = errors.New("not enough credits")
)

// APIKey is one caller credential with its usage counters.
type APIKey struct {
	ID   int64  `json:"id"`
	Key  string `json:"api_key"`
	Hint string `json:"api_key_hint"`
	Name string `json:"name,omitempty"`
	// UserID is the owning user, empty for keys created by operators.
	UserID string `json:"user_id,omitempty"`
	// RequestCount counts sub-requests sent to responders.
	RequestCount int64 `json:"request_count"`
	// APIRequestCount counts calls to the gateway.
	APIRequestCount int64 `json:"api_request_count"`
	// ValidUntil is a unix timestamp or NeverExpires.
	ValidUntil        int64            `json:"valid_until"`
	Credits           int64            `json:"credits"`
	Enabled           bool             `json:"enabled"`
	RateLimits        []ratelimit.Rule `json:"rate_limits"`
	RateLimitsEnabled bool             `json:"rate_limits_enabled"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// UnlimitedCredits reports whether the key is never charged credits.
func (k APIKey) UnlimitedCredits() bool { return k.Credits == Unlimited }

// Expired reports whether the key lifetime ended before now.
func (k APIKey) Expired(now time.Time) bool {
	return k.ValidUntil != NeverExpires && k.ValidUntil < now.Unix()
}

// Check applies the admission rules in order: disabled, expired, credits.
func (k APIKey) Check(now time.Time, cost int64) error {
	switch {
	case !k.Enabled:
		return ErrKeyDisabled
	case k.Expired(now):
		return ErrKeyExpired
	case !k.UnlimitedCredits() && k.Credits-cost < 0:
		return ErrInsufficientCredits
	}
	return nil
}

// GenerateKey returns a URL-safe random token.
func GenerateKey() (string, error) {
	b := make([]byte, KeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hint is the displayable suffix of a key.
func Hint(key string) string {
	if len(key) <= 4 {
		return "..." + key
	}
	return "..." + key[len(key)-4:]
}

// NewKey holds the fields settable at creation. Zero values take defaults:
// a generated key, no expiry, unlimited credits.
type NewKey struct {
	Key        string `json:"api_key,omitempty"`
	Name       string `json:"name,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	ValidUntil *int64 `json:"valid_until,omitempty"`
	Credits    *int64 `json:"credits,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

// Patch lists the fields to change; nil fields are left untouched.
type Patch struct {
	Name              *string           `json:"name,omitempty"`
	ValidUntil        *int64            `json:"valid_until,omitempty"`
	Credits           *int64            `json:"credits,omitempty"`
	Enabled           *bool             `json:"enabled,omitempty"`
	RateLimits        *[]ratelimit.Rule `json:"rate_limits,omitempty"`
	RateLimitsEnabled *bool             `json:"rate_limits_enabled,omitempty"`
}

// KeyStore persists API keys. query is either the numeric id or the key.
type KeyStore interface {
	Create(ctx context.Context, k NewKey) (APIKey, error)
	Get(ctx context.Context, query string) (APIKey, error)
	List(ctx context.Context) ([]APIKey, error)
	Update(ctx context.Context, query string, p Patch) (APIKey, error)
	Delete(ctx context.Context, query string) error
}
