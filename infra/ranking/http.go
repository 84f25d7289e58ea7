package ranking

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"

	"github.com/kilianp07/vendpoint/core/directory"
	"github.com/kilianp07/vendpoint/core/factory"
	"github.com/kilianp07/vendpoint/core/model"
)

// HTTPConfig configures the HTTP ranking source.
type HTTPConfig struct {
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
	RetryCount int               `json:"retry_count"`
	BackoffMS  int               `json:"backoff_ms"`
}

// HTTPSource fetches the ranking with a GET request.
type HTTPSource struct {
	url     string
	headers http.Header
	client  *httpclient.Client
}

// NewHTTPSource builds a source from cfg.
func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ranking url is required")
	}
	if cfg.BackoffMS <= 0 {
		cfg.BackoffMS = 200
	}
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	backoff := heimdall.NewExponentialBackoff(time.Duration(cfg.BackoffMS)*time.Millisecond, 5*time.Second, 2, time.Millisecond)
	client := httpclient.NewClient(
		httpclient.WithRetryCount(cfg.RetryCount),
		httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
	)
	return &HTTPSource{url: cfg.URL, headers: headers, client: client}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header = s.headers.Clone()
	resp, err := s.client.Do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("fetch ranking: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ranking: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ranking: %w", err)
	}
	return decodeRanking(raw)
}

func init() {
	if err := directory.RegisterSource("http", func(conf map[string]any) (directory.Source, error) {
		var c HTTPConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewHTTPSource(c)
	}); err != nil {
		panic(err)
	}
}
