package dispatch

import "errors"

var (
	// ErrInvalidArgument is returned before dispatch starts when the request
	// is malformed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUpstreamNotReady is returned when top-K selection is requested but
	// the directory never completed a sync and no explicit candidates exist.
	ErrUpstreamNotReady = errors.New("upstream not ready")
)
