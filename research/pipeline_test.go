package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypilot/researchflow/aggregate"
	"github.com/studypilot/researchflow/scoring"
	"github.com/studypilot/researchflow/subtopics"
	"github.com/studypilot/researchflow/types"
)

// TestPipeline_PhotosynthesisScenario drives the full pipeline through
// a mixed outcome: two agents return overlapping material, three time
// out, and the tree recurses one level.
func TestPipeline_PhotosynthesisScenario(t *testing.T) {
	backends := map[types.AgentName]*scriptedBackend{
		types.AgentGeneral: {
			name: "general",
			items: []types.SearchItem{
				{
					Title:          "Photosynthesis - Overview",
					URL:            "https://en.wikipedia.org/wiki/Photosynthesis",
					Snippet:        "Photosynthesis converts light energy into chemical energy.",
					RelevanceScore: 0.9,
				},
				{
					Title:          "Light Dependent Reactions Explained",
					URL:            "https://biology.example.com/light-reactions",
					Snippet:        "The light reactions split water and produce ATP.",
					RelevanceScore: 0.8,
				},
			},
		},
		types.AgentAcademic: {
			name: "academic",
			items: []types.SearchItem{
				{
					Title:          "Photosynthesis: Overview",
					URL:            "https://en.wikipedia.org/wiki/Photosynthesis",
					Snippet:        "Photosynthesis converts light energy into chemical energy, sustaining nearly all life.",
					RelevanceScore: 0.85,
				},
				{
					Title:          "Light-Dependent Reactions Explained",
					URL:            "https://biology.example.com/light-reactions/",
					Snippet:        "ATP and NADPH production in the thylakoid membrane.",
					RelevanceScore: 0.82,
				},
			},
		},
		types.AgentVideo:     {name: "video", waitForDeadline: true},
		types.AgentCommunity: {name: "community", waitForDeadline: true},
		types.AgentNews:      {name: "news", waitForDeadline: true},
	}

	synth := &stubSynthesizer{topics: []subtopics.ProposedTopic{
		{Title: "Light Dependent Reactions", Level: 1, Confidence: 0.92},
		{Title: "Calvin Cycle", Level: 1, Confidence: 0.88},
		{Title: "Chlorophyll and Pigments", Level: 1, Confidence: 0.8},
		{Title: "Photorespiration", Level: 1, Confidence: 0.7},
	}}

	cfg := DefaultCoordinatorConfig()
	cfg.Retry = fastRetryPolicy()
	coord := NewCoordinator(
		cfg,
		testRoster(backends),
		aggregate.New(aggregate.DefaultConfig(), nil),
		scoring.New(scoring.DefaultConfig(), nil),
		subtopics.New(subtopics.DefaultConfig(), synth, nil),
		nil,
	)
	orch := NewOrchestrator(OrchestratorConfig{
		MaxDepth:             2,
		MaxSubtopicsPerLevel: 3,
		Workers:              2,
	}, coord, nil)

	result, err := orch.Run(context.Background(), "run-photo", "photosynthesis", &types.ResearchContext{
		UserLevel: types.LevelIntermediate,
	}, nil)
	require.NoError(t, err)

	root := result.Root
	require.NotNil(t, root.Result)

	// Two agents succeeded, three timed out: partial, not failed.
	assert.Equal(t, types.NodePartial, root.Status)
	timeouts := 0
	for _, ar := range root.Result.AgentResults {
		if ar.Error != nil && ar.Error.Code == types.ErrAgentTimeout {
			timeouts++
		}
	}
	assert.Equal(t, 3, timeouts)

	// Near-duplicates across general and academic collapse pairwise.
	agg := root.Result.AggregatedContent
	require.NotNil(t, agg)
	require.Len(t, agg.Results, 2)
	for _, r := range agg.Results {
		assert.Equal(t, 1, r.DuplicateCount)
		assert.Equal(t, []types.AgentName{types.AgentAcademic, types.AgentGeneral}, r.Sources)
	}

	// Scoring annotated every surviving result with a dense ranking.
	require.Len(t, root.Result.ScoredResults, 2)
	for i, sr := range root.Result.ScoredResults {
		assert.Equal(t, i+1, sr.Ranking)
		assert.GreaterOrEqual(t, sr.FinalScore, 0.0)
		assert.LessOrEqual(t, sr.FinalScore, 1.0)
	}

	// The breadth cap keeps the three most confident subtopics.
	require.Len(t, root.Children, 3)
	assert.Equal(t, "Light Dependent Reactions", root.Children[0].Topic)
	assert.Equal(t, "Calvin Cycle", root.Children[1].Topic)
	assert.Equal(t, "Chlorophyll and Pigments", root.Children[2].Topic)

	for i, child := range root.Children {
		assert.Equal(t, 1, child.Depth)
		assert.Equal(t, types.NodePartial, child.Status)
		assert.Empty(t, child.Children)
		assert.Equal(t, root.TopicID+"-"+string(rune('0'+i)), child.TopicID)
	}

	// Synthesis ran for the root only; leaves never propose children.
	assert.Equal(t, 1, synth.callCount())

	assert.Equal(t, 4, result.TotalNodes)
	assert.Equal(t, 4, result.CompletedNodes)
	assert.Equal(t, types.NodePartial, result.Status)
}
