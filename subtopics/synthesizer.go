// Package subtopics derives a bounded-depth, bounded-breadth hierarchy of
// subtopics from aggregated research content. The actual text generation
// is delegated to a Synthesizer collaborator; this package owns the
// structural work: stable IDs, level enforcement, confidence pruning,
// difficulty targeting, and cross-topic relationships.
package subtopics

import (
	"context"

	"github.com/studypilot/researchflow/types"
)

// ProposedTopic is one topic candidate returned by the synthesizer.
type ProposedTopic struct {
	Title                string          `json:"title"`
	Description          string          `json:"description,omitempty"`
	Level                int             `json:"level"`
	Parent               string          `json:"parent,omitempty"` // parent title, empty for top level
	Confidence           float64         `json:"confidence"`
	Difficulty           types.UserLevel `json:"difficulty,omitempty"`
	EstimatedTimeMinutes int             `json:"estimated_time_minutes,omitempty"`
	Prerequisites        []string        `json:"prerequisites,omitempty"`
	KeyTerms             []string        `json:"key_terms,omitempty"`
}

// Synthesis is the structured output of the external text-generation
// capability for one node.
type Synthesis struct {
	Summary      string          `json:"summary"`
	Perspectives []string        `json:"perspectives,omitempty"`
	KeyFacts     []string        `json:"key_facts,omitempty"`
	Topics       []ProposedTopic `json:"topics,omitempty"`
}

// Synthesizer turns aggregated and scored content into prose plus a
// structured topic list. It is an external collaborator; a failure here
// costs only the node's subtopics, never its aggregated results.
type Synthesizer interface {
	Synthesize(ctx context.Context, topic string, agg *types.Aggregation, agentResults []types.AgentResult) (*Synthesis, error)
}
