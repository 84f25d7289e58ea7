package ledger

import (
	"context"
	"time"

	"github.com/kilianp07/vendpoint/core/dispatch"
)

// Charge is the usage delta applied once per gateway call.
type Charge struct {
	NetworkRequests int64
	APIRequests     int64
	// Credits is the amount to deduct, nil when nothing is deducted.
	Credits *int64
}

// Ledger applies charges atomically. A key charge also counts the
// requests against the key's owner in the same transaction.
type Ledger interface {
	Charge(ctx context.Context, key string, c Charge) error
	// ChargeUser counts a call made with a user token. Users hold no
	// credits, so c.Credits is ignored.
	ChargeUser(ctx context.Context, userID string, c Charge) error
}

// ChargeFor computes the usage of one call: one API request, every issued
// sub-request, and cost per successful choice unless the key is unlimited
// or nothing succeeded.
func ChargeFor(k APIKey, out dispatch.Outcome, cost int64) Charge {
	c := Charge{APIRequests: 1, NetworkRequests: int64(out.Issued())}
	if k.UnlimitedCredits() || out.AllFailed || len(out.Successes) == 0 {
		return c
	}
	spent := cost * int64(len(out.Successes))
	c.Credits = &spent
	return c
}

// UsageFor is the request count of a call charged to a user directly.
func UsageFor(out dispatch.Outcome) Charge {
	return Charge{APIRequests: 1, NetworkRequests: int64(out.Issued())}
}

// Authenticator admits callers by key.
type Authenticator struct {
	store KeyStore
	cost  int64
	now   func() time.Time
}

// NewAuthenticator checks keys against store; cost is the minimum balance a
// limited key must hold.
func NewAuthenticator(store KeyStore, cost int64) *Authenticator {
	return &Authenticator{store: store, cost: cost, now: time.Now}
}

// Authenticate returns the key record when the caller may proceed.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (APIKey, error) {
	if key == "" {
		return APIKey{}, ErrMissingKey
	}
	k, err := a.store.Get(ctx, key)
	if err != nil {
		return APIKey{}, err
	}
	// ids are accepted by Get for admin lookups but never as credentials
	if k.Key != key {
		return APIKey{}, ErrKeyNotFound
	}
	if err := k.Check(a.now(), a.cost); err != nil {
		return APIKey{}, err
	}
	return k, nil
}
