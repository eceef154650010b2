package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

// spyBackend returns a deterministic vector per text and counts calls.
type spyBackend struct {
	calls      int
	batchSizes []int
	err        error
}

func (s *spyBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	s.calls++
	s.batchSizes = append(s.batchSizes, len(texts))
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text))}
	}
	return out, nil
}

func (s *spyBackend) Model() string { return "spy-model" }

func newTestService(backend Backend) *Service {
	return NewService(DefaultServiceConfig(), backend, NewRedisCache(nil, DefaultCacheConfig(), zap.NewNop()), HeuristicTokenizer{}, zap.NewNop())
}

func TestEmbed_SecondCallServedFromCache(t *testing.T) {
	backend := &spyBackend{}
	s := newTestService(backend)
	ctx := context.Background()

	first, err := s.Embed(ctx, []string{"photosynthesis basics"})
	require.NoError(t, err)
	require.Equal(t, 1, backend.calls)

	second, err := s.Embed(ctx, []string{"photosynthesis basics"})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.calls, "identical text must be served from cache")
	assert.Equal(t, first, second)
}

func TestEmbed_PartitionsCachedAndUncached(t *testing.T) {
	backend := &spyBackend{}
	s := newTestService(backend)
	ctx := context.Background()

	_, err := s.Embed(ctx, []string{"aa", "bbb"})
	require.NoError(t, err)
	require.Equal(t, 1, backend.calls)

	out, err := s.Embed(ctx, []string{"aa", "cccc", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)
	assert.Equal(t, []int{2, 1}, backend.batchSizes, "only the uncached text goes to the backend")

	// Merged back into original order.
	assert.Equal(t, []float64{2}, out[0])
	assert.Equal(t, []float64{4}, out[1])
	assert.Equal(t, []float64{3}, out[2])
}

func TestEmbed_BatchCeiling(t *testing.T) {
	backend := &spyBackend{}
	cfg := DefaultServiceConfig()
	cfg.MaxBatchSize = 100
	s := NewService(cfg, backend, nil, HeuristicTokenizer{}, zap.NewNop())

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = string(rune('a'+i%26)) + string(rune('0'+i%10)) + string(rune('A'+i/26%26))
	}
	out, err := s.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, out, 250)
	assert.Equal(t, []int{100, 100, 50}, backend.batchSizes)
}

func TestEmbed_BackendFailurePropagates(t *testing.T) {
	backend := &spyBackend{err: errors.New("quota exceeded")}
	s := newTestService(backend)

	_, err := s.Embed(context.Background(), []string{"anything"})
	require.Error(t, err)
	assert.Equal(t, types.ErrEmbeddingBackend, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestEmbed_Empty(t *testing.T) {
	s := newTestService(&spyBackend{})
	out, err := s.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEmbedChunks_UsesMetadataPrefixedText(t *testing.T) {
	backend := &spyBackend{}
	s := newTestService(backend)

	bare := Chunk{Content: "same content"}
	prefixed := Chunk{Content: "same content", Metadata: ChunkMetadata{ParentTopic: "Biology"}}

	first, err := s.EmbedChunks(context.Background(), []Chunk{bare})
	require.NoError(t, err)
	second, err := s.EmbedChunks(context.Background(), []Chunk{prefixed})
	require.NoError(t, err)

	// Different embedding text means a different cache key and vector.
	assert.Equal(t, 2, backend.calls)
	assert.NotEqual(t, first[0], second[0])
}
