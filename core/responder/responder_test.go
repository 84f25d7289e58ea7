package responder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/vendpoint/core/model"
)

func TestReasonOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want model.FailureReason
	}{
		{"nil", nil, model.ReasonNone},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), model.ReasonTimeout},
		{"cancel", context.Canceled, model.ReasonCancelled},
		{"plain", errors.New("connection refused"), model.ReasonTransportFailure},
		{"rejected", Fail(model.ReasonUpstreamRejected, "hk", errors.New("bad")), model.ReasonUpstreamRejected},
		{"wrapped failure", fmt.Errorf("x: %w", Fail(model.ReasonTimeout, "", nil)), model.ReasonTimeout},
		{"none promoted", Fail(model.ReasonNone, "", nil), model.ReasonTransportFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReasonOf(tc.err))
		})
	}
}

func TestFailureAccessors(t *testing.T) {
	err := Fail(model.ReasonUpstreamRejected, "hk9", errors.New("status 3"))
	assert.Equal(t, "hk9", ResponderOf(err))
	assert.Equal(t, "status 3", Message(err))
	assert.Equal(t, "upstream_rejected: status 3", err.Error())
	assert.Equal(t, "", ResponderOf(errors.New("x")))
	assert.Equal(t, "", Message(nil))
}
