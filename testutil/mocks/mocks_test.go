package mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypilot/researchflow/agents"
	"github.com/studypilot/researchflow/subtopics"
	"github.com/studypilot/researchflow/types"
)

func TestSearchBackend_DefaultItems(t *testing.T) {
	b := NewSearchBackend("general")

	items, err := b.Search(context.Background(), "solar power", agents.SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Contains(t, items[0].Title, "solar power")
	assert.Equal(t, "general", items[0].Source)

	_, err = time.Parse(time.RFC3339, items[0].PublishedAt)
	assert.NoError(t, err)

	calls := b.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "solar power", calls[0].Query)
	assert.Equal(t, 5, calls[0].Opts.MaxResults)
}

func TestSearchBackend_FailAfter(t *testing.T) {
	sentinel := errors.New("backend down")
	b := NewSearchBackend("news").FailAfter(2, sentinel)

	for i := 0; i < 2; i++ {
		_, err := b.Search(context.Background(), "q", agents.SearchOptions{})
		require.NoError(t, err)
	}
	_, err := b.Search(context.Background(), "q", agents.SearchOptions{})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, b.CallCount())
}

func TestSearchBackend_BlockingHonorsContext(t *testing.T) {
	b := NewSearchBackend("academic").Blocking()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Search(ctx, "q", agents.SearchOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmbeddingBackend_Deterministic(t *testing.T) {
	b := NewEmbeddingBackend("test-embed", 8)

	first, err := b.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	second, err := b.EmbedBatch(context.Background(), []string{"alpha"})
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, first[0], 8)
	assert.Equal(t, first[0], second[0])
	assert.NotEqual(t, first[0], first[1])
	assert.Equal(t, 3, b.TextCount())
	assert.Len(t, b.Batches(), 2)
}

func TestSynthesizer_DefaultAndPinned(t *testing.T) {
	s := NewSynthesizer(2).WithSynthesis("pinned", &subtopics.Synthesis{Summary: "exact"})

	syn, err := s.Synthesize(context.Background(), "oceans", &types.Aggregation{}, nil)
	require.NoError(t, err)
	assert.Len(t, syn.Topics, 2)
	assert.Contains(t, syn.Summary, "oceans")

	pinned, err := s.Synthesize(context.Background(), "pinned", &types.Aggregation{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "exact", pinned.Summary)
	assert.Equal(t, 2, s.CallCount())
}

func TestSynthesizer_Error(t *testing.T) {
	sentinel := errors.New("synthesis unavailable")
	s := NewSynthesizer(1).WithError(sentinel)

	_, err := s.Synthesize(context.Background(), "t", &types.Aggregation{}, nil)
	assert.ErrorIs(t, err, sentinel)
}
