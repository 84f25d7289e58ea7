// Package ratelimit implements fixed-window request limits per identity.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrLimited is matched by every *LimitedError.
var ErrLimited = errors.New("rate limit exceeded")

// Rule allows Times requests per window of Seconds.
type Rule struct {
	Times   int `json:"times" validate:"min=1"`
	Seconds int `json:"seconds" validate:"min=1"`
}

func (r Rule) String() string { return fmt.Sprintf("%d/%ds", r.Times, r.Seconds) }

// Validate rejects rules that could never admit a request.
func (r Rule) Validate() error {
	if r.Times < 1 || r.Seconds < 1 {
		return fmt.Errorf("invalid rate limit %s: times and seconds must be positive", r)
	}
	return nil
}

// LimitedError reports which rule rejected the request.
type LimitedError struct {
	Rule       Rule
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("%v: %s, retry in %s", ErrLimited, e.Rule, e.RetryAfter.Round(time.Second))
}

func (e *LimitedError) Is(target error) bool { return target == ErrLimited }

// Limiter counts one request for identity against every rule.
type Limiter interface {
	Allow(ctx context.Context, identity string, rules []Rule) error
}

// Effective picks the rules that apply to a key: its own when enabled,
// the global ones otherwise.
func Effective(global, own []Rule, ownEnabled bool) []Rule {
	if ownEnabled {
		return own
	}
	return global
}

// Window returns the index of the fixed window containing now and the time
// left until it closes.
func Window(now time.Time, r Rule) (int64, time.Duration) {
	size := int64(r.Seconds) * int64(time.Second)
	n := now.UnixNano()
	idx := n / size
	return idx, time.Duration((idx+1)*size - n)
}

// Key is the counter name of identity under rule r for window idx.
func Key(prefix, identity string, r Rule, idx int64) string {
	return prefix + ":" + identity + ":" + strconv.Itoa(r.Times) + "/" + strconv.Itoa(r.Seconds) + ":" + strconv.FormatInt(idx, 10)
}
