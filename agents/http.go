package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/internal/tlsutil"
	"github.com/studypilot/researchflow/types"
)

// HTTPBackendConfig configures the generic JSON search backend.
type HTTPBackendConfig struct {
	// BaseURL is the search service root, e.g. "https://search.internal".
	BaseURL string `json:"base_url" yaml:"base_url"`
	// APIKey is sent as a Bearer token when set.
	APIKey string `json:"api_key" yaml:"api_key"`
	// SearchPath is the query endpoint. Defaults to "/v1/search".
	SearchPath string `json:"search_path" yaml:"search_path"`
	// Timeout is the HTTP client timeout. Defaults to 30s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// HTTPBackend is a Backend over a JSON search API. One instance serves
// every agent; the agent's query strategy is already folded into the
// query string it receives.
type HTTPBackend struct {
	cfg    HTTPBackendConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPBackend creates a search backend client.
func NewHTTPBackend(cfg HTTPBackendConfig, logger *zap.Logger) *HTTPBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = "/v1/search"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("component", "http_backend")),
	}
}

// Name returns the backend name.
func (b *HTTPBackend) Name() string { return "http" }

type searchRequest struct {
	Query      string   `json:"query"`
	MaxResults int      `json:"max_results,omitempty"`
	Language   string   `json:"language,omitempty"`
	TimeRange  string   `json:"time_range,omitempty"`
	Domains    []string `json:"domains,omitempty"`
}

type searchResponse struct {
	Items []types.SearchItem `json:"items"`
}

// Search performs one query against the remote service.
func (b *HTTPBackend) Search(ctx context.Context, query string, opts SearchOptions) ([]types.SearchItem, error) {
	payload, err := json.Marshal(searchRequest{
		Query:      query,
		MaxResults: opts.MaxResults,
		Language:   opts.Language,
		TimeRange:  opts.TimeRange,
		Domains:    opts.Domains,
	})
	if err != nil {
		return nil, fmt.Errorf("agents: marshal search request: %w", err)
	}

	url := strings.TrimRight(b.cfg.BaseURL, "/") + b.cfg.SearchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("agents: build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrAgentFailed, "search backend unreachable").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewError(types.ErrAgentFailed,
			fmt.Sprintf("search backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))).
			WithRetryable(resp.StatusCode >= http.StatusInternalServerError)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewError(types.ErrAgentFailed, "search backend returned malformed response").
			WithCause(err).
			WithRetryable(false)
	}
	return out.Items, nil
}
