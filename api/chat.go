package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/ledger"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/core/requestlog"
)

// allFailedDetail is returned with HTTP 502 when no responder succeeded.
const allFailedDetail = "All miner responses have failed."

// ChatRequest is the body of POST /chat. Omitted fields take the configured
// dispatch defaults.
type ChatRequest struct {
	Messages []model.Message `json:"messages" validate:"required,min=1,dive"`
	UIDs     []int           `json:"uids" validate:"omitempty,dive,min=0"`
	// TopN takes precedence over UIDs once the directory has synced.
	TopN                  *int  `json:"top_n" validate:"omitempty,min=0"`
	InParallel            *int  `json:"in_parallel" validate:"omitempty,min=1"`
	Attempts              *int  `json:"attempts" validate:"omitempty,min=0"`
	TimeoutMS             *int  `json:"timeout_ms" validate:"omitempty,min=0"`
	RespondOnFirstSuccess *bool `json:"respond_on_first_success"`
}

type chatMessage struct {
	Role    model.Role `json:"role"`
	Content string     `json:"content"`
}

type choice struct {
	Index           int         `json:"index"`
	UID             int         `json:"uid"`
	ResponderHotkey string      `json:"responder_hotkey"`
	Message         chatMessage `json:"message"`
	ResponseMS      int64       `json:"response_ms"`
}

type failedResponse struct {
	Index           int    `json:"index"`
	UID             int    `json:"uid"`
	ResponderHotkey string `json:"responder_hotkey"`
	Error           string `json:"error"`
	ResponseMS      int64  `json:"response_ms"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	Choices         []choice         `json:"choices"`
	FailedResponses []failedResponse `json:"failed_responses"`
}

func (s *server) toRequest(in ChatRequest, correlationID string) (dispatch.Request, error) {
	cfg := s.Dispatch
	req := dispatch.Request{
		CorrelationID:      correlationID,
		Prompt:             in.Messages,
		TopK:               cfg.TopK,
		Parallelism:        cfg.Parallelism,
		AttemptBudget:      cfg.AttemptBudget,
		Timeout:            cfg.Timeout(),
		StopOnFirstSuccess: cfg.StopOnFirstSuccess,
	}
	if len(in.UIDs) > 0 {
		req.TopK = 0
		if s.Directory != nil {
			req.Candidates = s.Directory.Resolve(in.UIDs)
		} else {
			for _, uid := range in.UIDs {
				req.Candidates = append(req.Candidates, model.Candidate{UID: uid})
			}
		}
	}
	if in.TopN != nil {
		req.TopK = *in.TopN
	}
	if in.InParallel != nil {
		req.Parallelism = *in.InParallel
	}
	if in.Attempts != nil {
		req.AttemptBudget = *in.Attempts
	}
	if in.TimeoutMS != nil {
		req.Timeout = time.Duration(*in.TimeoutMS) * time.Millisecond
	}
	if in.RespondOnFirstSuccess != nil {
		req.StopOnFirstSuccess = *in.RespondOnFirstSuccess
	}
	if cfg.MaxParallelism > 0 && req.Parallelism > cfg.MaxParallelism {
		return req, fmt.Errorf("%w: in_parallel must be <= %d", dispatch.ErrInvalidArgument, cfg.MaxParallelism)
	}
	return req, nil
}

func (s *server) chat(c *gin.Context) {
	in, correlationID, out, ok := s.runChat(c)
	if !ok {
		return
	}
	k := keyFrom(c)
	s.settle(c.Request.Context(), k, correlationID, in.Messages, out)
	respond(c, out)
}

// conversation is /chat for user tokens: usage is counted on the user.
func (s *server) conversation(c *gin.Context) {
	in, correlationID, out, ok := s.runChat(c)
	if !ok {
		return
	}
	u := userFrom(c)
	ctx := context.WithoutCancel(c.Request.Context())
	if s.Ledger != nil {
		if err := s.Ledger.ChargeUser(ctx, u.ID, ledger.UsageFor(out)); err != nil {
			s.Log.Errorf("charge user %s for %s: %v", u.ID, correlationID, err)
		}
	}
	if s.Recorder != nil {
		s.Recorder.RecordOutcome(requestlog.Meta{CorrelationID: correlationID, Prompt: in.Messages}, out)
	}
	respond(c, out)
}

// runChat binds, validates and dispatches the body. When it returns false
// the error response is already written.
func (s *server) runChat(c *gin.Context) (ChatRequest, string, dispatch.Outcome, bool) {
	var in ChatRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return in, "", dispatch.Outcome{}, false
	}
	if err := validate.Struct(in); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return in, "", dispatch.Outcome{}, false
	}
	correlationID := c.GetHeader("X-Request-ID")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	c.Header("X-Correlation-ID", correlationID)

	req, err := s.toRequest(in, correlationID)
	if err != nil {
		fail(c, statusOf(err), err.Error())
		return in, correlationID, dispatch.Outcome{}, false
	}
	out, err := s.Engine.Run(c.Request.Context(), req)
	if err != nil {
		code := statusOf(err)
		if code == http.StatusInternalServerError {
			_ = c.Error(err)
		}
		fail(c, code, err.Error())
		return in, correlationID, dispatch.Outcome{}, false
	}
	return in, correlationID, out, true
}

func respond(c *gin.Context, out dispatch.Outcome) {
	resp := NewChatResponse(out)
	if out.AllFailed {
		c.JSON(http.StatusBadGateway, errorBody{Detail: allFailedDetail, FailedResponses: resp.FailedResponses})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// settle charges the key once and queues the request log records. It runs
// even when the caller went away so usage is never lost.
func (s *server) settle(ctx context.Context, k ledger.APIKey, correlationID string, prompt []model.Message, out dispatch.Outcome) {
	ctx = context.WithoutCancel(ctx)
	if s.Ledger != nil && k.Key != "" {
		if err := s.Ledger.Charge(ctx, k.Key, ledger.ChargeFor(k, out, int64(s.Dispatch.CreditCost))); err != nil {
			s.Log.Errorf("charge key %s for %s: %v", k.Hint, correlationID, err)
		}
	}
	if s.Recorder != nil {
		s.Recorder.RecordOutcome(requestlog.Meta{CorrelationID: correlationID, KeyHint: k.Hint, Prompt: prompt}, out)
	}
}

// NewChatResponse renders an outcome as the /chat response body.
func NewChatResponse(out dispatch.Outcome) ChatResponse {
	resp := ChatResponse{
		Choices:         make([]choice, 0, len(out.Successes)),
		FailedResponses: make([]failedResponse, 0, len(out.Failures)),
	}
	for _, r := range out.Successes {
		resp.Choices = append(resp.Choices, choice{
			Index:           r.Index,
			UID:             r.Candidate.UID,
			ResponderHotkey: r.Responder,
			Message:         chatMessage{Role: model.RoleAssistant, Content: r.Content},
			ResponseMS:      r.Latency.Milliseconds(),
		})
	}
	for _, r := range out.Failures {
		resp.FailedResponses = append(resp.FailedResponses, failedResponse{
			Index:           r.Index,
			UID:             r.Candidate.UID,
			ResponderHotkey: r.Responder,
			Error:           r.Error,
			ResponseMS:      r.Latency.Milliseconds(),
		})
	}
	return resp
}
