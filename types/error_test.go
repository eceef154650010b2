package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	e := NewError(ErrAgentTimeout, "academic agent timed out")
	assert.Equal(t, "[AGENT_TIMEOUT] academic agent timed out", e.Error())

	cause := errors.New("context deadline exceeded")
	e = e.WithCause(cause)
	assert.Contains(t, e.Error(), "context deadline exceeded")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	e := NewError(ErrEmbeddingBackend, "embed batch failed").WithCause(cause)

	require.ErrorIs(t, fmt.Errorf("wrap: %w", e), cause)
}

func TestError_Builders(t *testing.T) {
	e := NewError(ErrAgentFailed, "backend returned 503").
		WithAgent(AgentVideo).
		WithRetryable(true)

	assert.Equal(t, AgentVideo, e.Agent)
	assert.True(t, IsRetryable(e))
	assert.Equal(t, ErrAgentFailed, GetErrorCode(e))
}

func TestIsRetryable_PlainError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{0.95, TierExcellent},
		{0.8, TierExcellent},
		{0.79, TierGood},
		{0.6, TierGood},
		{0.5, TierFair},
		{0.4, TierFair},
		{0.39, TierPoor},
		{0, TierPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.score), "score %v", tt.score)
	}
}
