package subtopics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypilot/researchflow/types"
)

func TestHTTPSynthesizer_Synthesize(t *testing.T) {
	var gotBody synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/synthesize", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(Synthesis{
			Summary: "a summary",
			Topics: []ProposedTopic{
				{Title: "Light reactions", Level: 1, Confidence: 0.9},
			},
		})
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(HTTPSynthesizerConfig{BaseURL: srv.URL}, nil)

	syn, err := s.Synthesize(t.Context(), "photosynthesis", &types.Aggregation{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a summary", syn.Summary)
	require.Len(t, syn.Topics, 1)
	assert.Equal(t, "Light reactions", syn.Topics[0].Title)

	assert.Equal(t, "photosynthesis", gotBody.Topic)
}

func TestHTTPSynthesizer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(HTTPSynthesizerConfig{BaseURL: srv.URL}, nil)

	_, err := s.Synthesize(t.Context(), "x", nil, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrSynthesis, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}
