// Package responder implements the HTTP transport to responders.
package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"

	"github.com/kilianp07/vendpoint/auth"
	"github.com/kilianp07/vendpoint/core/model"
	core "github.com/kilianp07/vendpoint/core/responder"
)

// Config tunes the HTTP transport.
type Config struct {
	// DefaultEndpoint is used for candidates without their own endpoint.
	DefaultEndpoint string    `json:"default_endpoint"`
	Path            string    `json:"path"`
	RetryCount      int       `json:"retry_count"`
	BackoffMS       int       `json:"backoff_ms"`
	HTTPTimeoutMS   int       `json:"http_timeout_ms"`
	Auth            auth.Conf `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "/prompting"
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
	if c.HTTPTimeoutMS == 0 {
		c.HTTPTimeoutMS = 120000
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RetryCount < 0 {
		return fmt.Errorf("responder.retry_count must be >= 0")
	}
	if c.BackoffMS < 0 || c.HTTPTimeoutMS < 0 {
		return fmt.Errorf("responder timings must be >= 0")
	}
	return nil
}

type promptRequest struct {
	Roles    []string `json:"roles"`
	Messages []string `json:"messages"`
}

type promptResponse struct {
	Completion    string `json:"completion"`
	IsCompletion  bool   `json:"is_completion"`
	DestHotkey    string `json:"dest_hotkey"`
	ReturnMessage string `json:"return_message"`
}

// HTTPClient sends prompts as JSON and implements core responder.Client.
type HTTPClient struct {
	cfg   Config
	http  *httpclient.Client
	creds *auth.ClientCred
}

// NewHTTPClient builds a client with heimdall retries. A nil doer uses the
// default net/http client.
func NewHTTPClient(cfg Config, doer heimdall.Doer) *HTTPClient {
	cfg.SetDefaults()
	backoff := heimdall.NewConstantBackoff(time.Duration(cfg.BackoffMS)*time.Millisecond, time.Millisecond)
	opts := []httpclient.Option{
		httpclient.WithHTTPTimeout(time.Duration(cfg.HTTPTimeoutMS) * time.Millisecond),
		httpclient.WithRetryCount(cfg.RetryCount),
		httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
	}
	if doer != nil {
		opts = append(opts, httpclient.WithHTTPClient(doer))
	}
	c := &HTTPClient{cfg: cfg, http: httpclient.NewClient(opts...)}
	if cfg.Auth.Enabled() {
		c.creds = auth.NewClientCred(cfg.Auth)
	}
	return c
}

func (c *HTTPClient) Send(ctx context.Context, cand model.Candidate, prompt []model.Message) (model.Reply, error) {
	endpoint := cand.Endpoint
	if endpoint == "" {
		endpoint = c.cfg.DefaultEndpoint
	}
	if endpoint == "" {
		return model.Reply{}, core.Fail(model.ReasonTransportFailure, cand.Identity(), fmt.Errorf("no endpoint for uid %d", cand.UID))
	}
	roles, contents := model.Split(prompt)
	body, err := json.Marshal(promptRequest{Roles: roles, Messages: contents})
	if err != nil {
		return model.Reply{}, core.Fail(model.ReasonTransportFailure, cand.Identity(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(endpoint, "/")+c.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return model.Reply{}, core.Fail(model.ReasonTransportFailure, cand.Identity(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.creds != nil {
		if err := c.creds.SetAuthHeader(req); err != nil {
			return model.Reply{}, core.Fail(model.ReasonUpstreamRejected, cand.Identity(), err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// heimdall flattens errors to text; the context tells timeouts apart
		if cerr := ctx.Err(); cerr != nil {
			return model.Reply{}, cerr
		}
		return model.Reply{}, core.Fail(model.ReasonTransportFailure, cand.Identity(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return model.Reply{}, cerr
		}
		return model.Reply{}, core.Fail(model.ReasonTransportFailure, cand.Identity(), err)
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return model.Reply{}, core.Fail(model.ReasonTransportFailure, cand.Identity(), statusError(resp.StatusCode, raw))
	case resp.StatusCode >= http.StatusBadRequest:
		return model.Reply{}, core.Fail(model.ReasonUpstreamRejected, cand.Identity(), statusError(resp.StatusCode, raw))
	}

	var out promptResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.Reply{}, core.Fail(model.ReasonTransportFailure, cand.Identity(), fmt.Errorf("decode response: %w", err))
	}
	responder := out.DestHotkey
	if responder == "" {
		responder = cand.Identity()
	}
	if !out.IsCompletion {
		msg := out.ReturnMessage
		if msg == "" {
			msg = "responder returned no completion"
		}
		return model.Reply{}, core.Fail(model.ReasonUpstreamRejected, responder, errors.New(msg))
	}
	return model.Reply{Content: out.Completion, Responder: responder}, nil
}

func statusError(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	return fmt.Errorf("status %d: %s", code, msg)
}
