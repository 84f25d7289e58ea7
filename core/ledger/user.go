package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserDisabled = errors.New("user is disabled")
)

// User is an account owning API keys. Its counters aggregate the usage of
// its keys and of its own conversation calls.
type User struct {
	ID              string    `json:"id"`
	RequestCount    int64     `json:"request_count"`
	APIRequestCount int64     `json:"api_request_count"`
	Enabled         bool      `json:"enabled"`
	IsAdmin         bool      `json:"is_admin"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UserPatch lists the user fields to change; nil fields are left untouched.
type UserPatch struct {
	Enabled *bool `json:"enabled,omitempty"`
	IsAdmin *bool `json:"is_admin,omitempty"`
}

// UserStore persists users and scopes keys by owner.
type UserStore interface {
	// EnsureUser returns the user, creating an enabled non-admin record on
	// first sight.
	EnsureUser(ctx context.Context, id string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, p UserPatch) (User, error)
	// ListOwned returns the keys owned by the user, newest first.
	ListOwned(ctx context.Context, userID string) ([]APIKey, error)
}

// Owns reports whether the key belongs to the user.
func (u User) Owns(k APIKey) bool { return u.ID != "" && k.UserID == u.ID }
