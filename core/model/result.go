package model

import "time"

// FailureReason is the closed set of reasons a sub-request can fail with.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonTimeout
	ReasonTransportFailure
	ReasonUpstreamRejected
	ReasonCancelled
)

// String returns the wire name of the reason.
func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonTimeout:
		return "timeout"
	case ReasonTransportFailure:
		return "transport_failure"
	case ReasonUpstreamRejected:
		return "upstream_rejected"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason by name.
func (r FailureReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reason name. Unknown names map to TransportFailure.
func (r *FailureReason) UnmarshalText(b []byte) error {
	switch string(b) {
	case "":
		*r = ReasonNone
	case "timeout":
		*r = ReasonTimeout
	case "upstream_rejected":
		*r = ReasonUpstreamRejected
	case "cancelled":
		*r = ReasonCancelled
	default:
		*r = ReasonTransportFailure
	}
	return nil
}

// Reply is what a responder returns on success.
type Reply struct {
	Content   string
	Responder string
}

// SubResult is the outcome of one sub-request to one candidate.
// Success and failure are mutually exclusive: Reason is ReasonNone exactly
// when the sub-request succeeded.
type SubResult struct {
	Candidate Candidate     `json:"candidate"`
	Content   string        `json:"content,omitempty"`
	Reason    FailureReason `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
	Responder string        `json:"responder,omitempty"`
}

// Success reports whether the sub-request produced a completion.
func (r SubResult) Success() bool { return r.Reason == ReasonNone }

// Succeeded builds a successful SubResult.
func Succeeded(c Candidate, reply Reply, latency time.Duration) SubResult {
	responder := reply.Responder
	if responder == "" {
		responder = c.Identity()
	}
	return SubResult{Candidate: c, Content: reply.Content, Latency: latency, Responder: responder}
}

// Failed builds a failed SubResult. A ReasonNone reason is promoted to
// TransportFailure so a failure is never mistaken for a success.
func Failed(c Candidate, reason FailureReason, msg string, responder string, latency time.Duration) SubResult {
	if reason == ReasonNone {
		reason = ReasonTransportFailure
	}
	if responder == "" {
		responder = c.Identity()
	}
	if msg == "" {
		msg = reason.String()
	}
	return SubResult{Candidate: c, Reason: reason, Error: msg, Latency: latency, Responder: responder}
}
