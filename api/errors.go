package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/ledger"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail          string           `json:"detail"`
	FailedResponses []failedResponse `json:"failed_responses,omitempty"`
}

func fail(c *gin.Context, code int, detail string) {
	c.AbortWithStatusJSON(code, errorBody{Detail: detail})
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrUpstreamNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrMissingKey),
		errors.Is(err, ledger.ErrKeyDisabled),
		errors.Is(err, ledger.ErrKeyExpired),
		errors.Is(err, ledger.ErrInsufficientCredits):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
