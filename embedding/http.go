package embedding

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

// HTTPBackendConfig configures the JSON embedding backend.
type HTTPBackendConfig struct {
	// BaseURL is the embedding service root.
	BaseURL string `json:"base_url" yaml:"base_url"`
	// APIKey is sent as a Bearer token when set.
	APIKey string `json:"api_key" yaml:"api_key"`
	// ModelName is reported in cache entries and sent with each batch.
	ModelName string `json:"model" yaml:"model"`
	// EmbedPath is the batch endpoint. Defaults to "/v1/embeddings".
	EmbedPath string `json:"embed_path" yaml:"embed_path"`
	// Timeout is the HTTP client timeout. Defaults to 30s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// HTTPBackend is a Backend over an OpenAI-style embeddings API.
type HTTPBackend struct {
	cfg    HTTPBackendConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPBackend creates an embedding backend client.
func NewHTTPBackend(cfg HTTPBackendConfig, logger *zap.Logger) *HTTPBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EmbedPath == "" {
		cfg.EmbedPath = "/v1/embeddings"
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("component", "embedding_backend")),
	}
}

// Model returns the configured model name.
func (b *HTTPBackend) Model() string { return b.cfg.ModelName }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch embeds texts in one call, preserving input order.
func (b *HTTPBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	payload, err := json.Marshal(embedRequest{Model: b.cfg.ModelName, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal batch request: %w", err)
	}

	url := strings.TrimRight(b.cfg.BaseURL, "/") + b.cfg.EmbedPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedding: build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingBackend, "embedding backend unreachable").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewError(types.ErrEmbeddingBackend,
			fmt.Sprintf("embedding backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))).
			WithRetryable(resp.StatusCode >= http.StatusInternalServerError)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewError(types.ErrEmbeddingBackend, "embedding backend returned malformed response").
			WithCause(err).
			WithRetryable(false)
	}
	if len(out.Data) != len(texts) {
		return nil, types.NewError(types.ErrEmbeddingBackend,
			fmt.Sprintf("embedding backend returned %d vectors for %d texts", len(out.Data), len(texts)))
	}

	vectors := make([][]float64, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, types.NewError(types.ErrEmbeddingBackend,
				fmt.Sprintf("embedding backend returned out-of-range index %d", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
