package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/studypilot/researchflow/types"
)

func TestHTTPBackend_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Input, 2)

		// Out of order on purpose; the client must reorder by index.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0.3, 0.4}},
				{"index": 0, "embedding": []float64{0.1, 0.2}},
			},
		})
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPBackendConfig{
		BaseURL:   srv.URL,
		APIKey:    "secret",
		ModelName: "test-model",
	}, zaptest.NewLogger(t))

	vectors, err := b.EmbedBatch(t.Context(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float64{0.3, 0.4}, vectors[1])
	assert.Equal(t, "test-model", b.Model())
}

func TestHTTPBackend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPBackendConfig{BaseURL: srv.URL}, zaptest.NewLogger(t))

	_, err := b.EmbedBatch(t.Context(), []string{"alpha"})
	require.Error(t, err)
	assert.Equal(t, types.ErrEmbeddingBackend, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestHTTPBackend_VectorCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float64{0.1}}},
		})
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPBackendConfig{BaseURL: srv.URL}, zaptest.NewLogger(t))

	_, err := b.EmbedBatch(t.Context(), []string{"alpha", "beta"})
	require.Error(t, err)
	assert.Equal(t, types.ErrEmbeddingBackend, types.GetErrorCode(err))
}
