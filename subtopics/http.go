package subtopics

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

// HTTPSynthesizerConfig configures the remote synthesis client.
type HTTPSynthesizerConfig struct {
	// BaseURL is the synthesis service root.
	BaseURL string `json:"base_url" yaml:"base_url"`
	// APIKey is sent as a Bearer token when set.
	APIKey string `json:"api_key" yaml:"api_key"`
	// SynthesizePath is the endpoint path. Defaults to "/v1/synthesize".
	SynthesizePath string `json:"synthesize_path" yaml:"synthesize_path"`
	// Timeout is the HTTP client timeout. Defaults to 60s; synthesis
	// calls a generative model and runs longer than search.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// HTTPSynthesizer is a Synthesizer over a JSON synthesis API.
type HTTPSynthesizer struct {
	cfg    HTTPSynthesizerConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSynthesizer creates a synthesis client.
func NewHTTPSynthesizer(cfg HTTPSynthesizerConfig, logger *zap.Logger) *HTTPSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SynthesizePath == "" {
		cfg.SynthesizePath = "/v1/synthesize"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSynthesizer{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("component", "http_synthesizer")),
	}
}

type synthesizeRequest struct {
	Topic        string              `json:"topic"`
	Aggregation  *types.Aggregation  `json:"aggregation,omitempty"`
	AgentResults []types.AgentResult `json:"agent_results,omitempty"`
}

// Synthesize sends the node's aggregated content to the remote service
// and returns its structured synthesis.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, topic string, agg *types.Aggregation, agentResults []types.AgentResult) (*Synthesis, error) {
	payload, err := json.Marshal(synthesizeRequest{
		Topic:        topic,
		Aggregation:  agg,
		AgentResults: agentResults,
	})
	if err != nil {
		return nil, fmt.Errorf("subtopics: marshal synthesize request: %w", err)
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + s.cfg.SynthesizePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("subtopics: build synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrSynthesis, "synthesis backend unreachable").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewError(types.ErrSynthesis,
			fmt.Sprintf("synthesis backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))).
			WithRetryable(resp.StatusCode >= http.StatusInternalServerError)
	}

	var out Synthesis
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewError(types.ErrSynthesis, "synthesis backend returned malformed response").
			WithCause(err)
	}
	return &out, nil
}
