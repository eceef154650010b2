package subtopics

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

// Config bounds the extracted hierarchy.
type Config struct {
	MaxSubtopics    int     `json:"max_subtopics" yaml:"max_subtopics"`
	MinConfidence   float64 `json:"min_confidence" yaml:"min_confidence"`
	HierarchyLevels int     `json:"hierarchy_levels" yaml:"hierarchy_levels"`

	// RelationshipThreshold keeps only relationships stronger than this.
	RelationshipThreshold float64 `json:"relationship_threshold" yaml:"relationship_threshold"`

	// RelationshipFloor is the default strength assigned to otherwise
	// unrelated topic pairs before thresholding. Kept as a cheap prior;
	// pairs at the floor never survive the threshold.
	RelationshipFloor float64 `json:"relationship_floor" yaml:"relationship_floor"`

	// HintConfidence is assigned to topics derived from raw agent hints
	// rather than synthesis.
	HintConfidence float64 `json:"hint_confidence" yaml:"hint_confidence"`
}

// DefaultConfig returns the default extraction bounds.
func DefaultConfig() Config {
	return Config{
		MaxSubtopics:          24,
		MinConfidence:         0.6,
		HierarchyLevels:       3,
		RelationshipThreshold: 0.3,
		RelationshipFloor:     0.1,
		HintConfidence:        0.6,
	}
}

// ExtractedSubtopic is one node of the extracted hierarchy.
type ExtractedSubtopic struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Level       int                  `json:"level"`
	ParentID    string               `json:"parent_id,omitempty"`
	Children    []*ExtractedSubtopic `json:"children,omitempty"`
	Metadata    Metadata             `json:"metadata"`
}

// Metadata annotates one extracted subtopic.
type Metadata struct {
	Confidence           float64           `json:"confidence"`
	Difficulty           types.UserLevel   `json:"difficulty"`
	EstimatedTimeMinutes int               `json:"estimated_time_minutes"`
	Prerequisites        []string          `json:"prerequisites,omitempty"`
	KeyTerms             []string          `json:"key_terms,omitempty"`
	SourceAgents         []types.AgentName `json:"source_agents,omitempty"`
}

// ExtractionResult is the extractor's full output for one node.
type ExtractionResult struct {
	HierarchicalTopics []*ExtractedSubtopic `json:"hierarchical_topics"`
	FlatTopics         []*ExtractedSubtopic `json:"flat_topics"`
	Relationships      []Relationship       `json:"relationships,omitempty"`
	Metadata           ResultMetadata       `json:"metadata"`
}

// ResultMetadata summarizes one extraction.
type ResultMetadata struct {
	TopicCount  int       `json:"topic_count"`
	MaxLevel    int       `json:"max_level"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Extractor builds bounded subtopic hierarchies.
type Extractor struct {
	cfg    Config
	synth  Synthesizer
	logger *zap.Logger
}

// New creates an extractor over the given synthesizer.
func New(cfg Config, synth Synthesizer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSubtopics <= 0 {
		cfg.MaxSubtopics = 24
	}
	if cfg.HierarchyLevels <= 0 || cfg.HierarchyLevels > 3 {
		cfg.HierarchyLevels = 3
	}
	return &Extractor{
		cfg:    cfg,
		synth:  synth,
		logger: logger.With(zap.String("component", "subtopic_extractor")),
	}
}

// Extract synthesizes topic candidates and assembles the validated
// hierarchy. A synthesis failure returns an EXTRACTION_ERROR; callers
// keep the node's aggregated results and treat the branch as terminated.
func (e *Extractor) Extract(ctx context.Context, agentResults []types.AgentResult, agg *types.Aggregation, mainTopic string, rctx *types.ResearchContext) (*ExtractionResult, error) {
	if rctx == nil {
		rctx = &types.ResearchContext{}
	}

	var synthesis *Synthesis
	if e.synth != nil {
		var err error
		synthesis, err = e.synth.Synthesize(ctx, mainTopic, agg, agentResults)
		if err != nil {
			return nil, types.NewError(types.ErrExtraction, "synthesis failed for "+mainTopic).WithCause(err)
		}
	}

	candidates := e.collectCandidates(synthesis, agentResults)
	nodes := e.buildHierarchy(candidates)
	nodes = e.pruneLowConfidence(nodes)
	nodes = e.capSize(nodes)
	e.adjustDifficulty(nodes, rctx.UserLevel)

	flat := flatten(nodes)
	rels := e.relationships(flat)

	maxLevel := 0
	for _, n := range flat {
		if n.Level > maxLevel {
			maxLevel = n.Level
		}
	}

	e.logger.Debug("extraction completed",
		zap.String("topic", mainTopic),
		zap.Int("candidates", len(candidates)),
		zap.Int("topics", len(flat)),
		zap.Int("relationships", len(rels)),
	)

	return &ExtractionResult{
		HierarchicalTopics: nodes,
		FlatTopics:         flat,
		Relationships:      rels,
		Metadata: ResultMetadata{
			TopicCount:  len(flat),
			MaxLevel:    maxLevel,
			GeneratedAt: time.Now(),
		},
	}, nil
}

// collectCandidates merges synthesized topics with raw agent hints,
// deduplicating by normalized title. Synthesized topics win conflicts.
func (e *Extractor) collectCandidates(synthesis *Synthesis, agentResults []types.AgentResult) []ProposedTopic {
	seen := map[string]struct{}{}
	var out []ProposedTopic

	if synthesis != nil {
		for _, t := range synthesis.Topics {
			key := slugify(t.Title)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}

	for _, ar := range agentResults {
		if ar.Status == types.AgentFailed {
			continue
		}
		for _, hint := range ar.SubtopicHints {
			key := slugify(hint)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, ProposedTopic{
				Title:      hint,
				Level:      1,
				Confidence: e.cfg.HintConfidence,
			})
		}
	}
	return out
}

// buildHierarchy assigns stable IDs, clamps levels, and wires
// parent/child links by parent title. Candidates naming an unknown
// parent become top-level.
func (e *Extractor) buildHierarchy(candidates []ProposedTopic) []*ExtractedSubtopic {
	byTitle := make(map[string]*ExtractedSubtopic, len(candidates))
	nodes := make([]*ExtractedSubtopic, 0, len(candidates))

	for _, c := range candidates {
		level := c.Level
		if level < 1 {
			level = 1
		}
		if level > e.cfg.HierarchyLevels {
			level = e.cfg.HierarchyLevels
		}
		minutes := c.EstimatedTimeMinutes
		if minutes <= 0 {
			minutes = 15
		}
		difficulty := c.Difficulty
		if difficulty == "" {
			difficulty = types.LevelIntermediate
		}
		n := &ExtractedSubtopic{
			ID:          slugify(c.Title),
			Title:       c.Title,
			Description: c.Description,
			Level:       level,
			Metadata: Metadata{
				Confidence:           clamp01(c.Confidence),
				Difficulty:           difficulty,
				EstimatedTimeMinutes: minutes,
				Prerequisites:        c.Prerequisites,
				KeyTerms:             c.KeyTerms,
			},
		}
		byTitle[slugify(c.Title)] = n
		nodes = append(nodes, n)
	}

	var roots []*ExtractedSubtopic
	for i, c := range candidates {
		n := nodes[i]
		parent, ok := byTitle[slugify(c.Parent)]
		if c.Parent == "" || !ok || parent == n {
			roots = append(roots, n)
			continue
		}
		n.ParentID = parent.ID
		parent.Children = append(parent.Children, n)
	}

	// Levels resolve top-down only after every parent link is wired;
	// assigning them during the wiring pass would let candidate order
	// leave a child at or below its parent's level.
	for _, r := range roots {
		r.Level = 1
	}
	queue := append([]*ExtractedSubtopic(nil), roots...)
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		kept := parent.Children[:0]
		for _, c := range parent.Children {
			if parent.Level >= e.cfg.HierarchyLevels {
				// Parent sits at the bottom level already; keep the child
				// as a sibling rather than exceeding the level bound.
				c.ParentID = ""
				c.Level = parent.Level
				roots = append(roots, c)
			} else {
				c.Level = parent.Level + 1
				kept = append(kept, c)
			}
			queue = append(queue, c)
		}
		parent.Children = kept
	}
	return roots
}

// pruneLowConfidence removes subtrees below the confidence threshold,
// except where a descendant clears the threshold: descendants are only
// pruned, never promoted, so their ancestor chain must survive.
func (e *Extractor) pruneLowConfidence(roots []*ExtractedSubtopic) []*ExtractedSubtopic {
	var keep func(n *ExtractedSubtopic) bool
	keep = func(n *ExtractedSubtopic) bool {
		kept := n.Children[:0]
		for _, c := range n.Children {
			if keep(c) {
				kept = append(kept, c)
			} else {
				c.ParentID = ""
			}
		}
		n.Children = kept
		if n.Metadata.Confidence >= e.cfg.MinConfidence {
			return true
		}
		// Below threshold: survives only as scaffolding for surviving
		// higher-confidence descendants.
		for _, c := range n.Children {
			if hasConfidentDescendant(c, e.cfg.MinConfidence) {
				return true
			}
		}
		return false
	}

	out := roots[:0]
	for _, r := range roots {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func hasConfidentDescendant(n *ExtractedSubtopic, min float64) bool {
	if n.Metadata.Confidence >= min {
		return true
	}
	for _, c := range n.Children {
		if hasConfidentDescendant(c, min) {
			return true
		}
	}
	return false
}

// capSize drops the lowest-confidence leaves until the flattened count
// fits MaxSubtopics, preserving tree connectivity.
func (e *Extractor) capSize(roots []*ExtractedSubtopic) []*ExtractedSubtopic {
	for {
		flat := flatten(roots)
		if len(flat) <= e.cfg.MaxSubtopics {
			return roots
		}

		var victim *ExtractedSubtopic
		for _, n := range flat {
			if len(n.Children) > 0 {
				continue
			}
			if victim == nil || n.Metadata.Confidence < victim.Metadata.Confidence ||
				(n.Metadata.Confidence == victim.Metadata.Confidence && n.ID > victim.ID) {
				victim = n
			}
		}
		if victim == nil {
			return roots
		}
		roots = remove(roots, victim)
	}
}

func remove(roots []*ExtractedSubtopic, victim *ExtractedSubtopic) []*ExtractedSubtopic {
	out := roots[:0]
	for _, r := range roots {
		if r == victim {
			continue
		}
		r.Children = remove(r.Children, victim)
		out = append(out, r)
	}
	return out
}

// adjustDifficulty moves each topic's difficulty at most one step toward
// the caller's level, avoiding both mis-targeted escalation and
// over-simplification.
func (e *Extractor) adjustDifficulty(roots []*ExtractedSubtopic, userLevel types.UserLevel) {
	if userLevel == "" {
		return
	}
	target := levelOrdinal(userLevel)
	for _, n := range flatten(roots) {
		current := levelOrdinal(n.Metadata.Difficulty)
		switch {
		case current > target:
			n.Metadata.Difficulty = ordinalLevel(current - 1)
		case current < target:
			n.Metadata.Difficulty = ordinalLevel(current + 1)
		}
	}
}

func levelOrdinal(l types.UserLevel) int {
	switch l {
	case types.LevelBeginner:
		return 0
	case types.LevelAdvanced:
		return 2
	default:
		return 1
	}
}

func ordinalLevel(i int) types.UserLevel {
	switch {
	case i <= 0:
		return types.LevelBeginner
	case i >= 2:
		return types.LevelAdvanced
	default:
		return types.LevelIntermediate
	}
}

// flatten returns every node of the forest in depth-first order.
func flatten(roots []*ExtractedSubtopic) []*ExtractedSubtopic {
	var out []*ExtractedSubtopic
	var walk func(n *ExtractedSubtopic)
	walk = func(n *ExtractedSubtopic) {
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return out
}

// Refs converts the top-level extracted topics into the flat references
// the orchestrator schedules as child nodes, ordered by confidence.
func (r *ExtractionResult) Refs() []types.SubtopicRef {
	tops := append([]*ExtractedSubtopic{}, r.HierarchicalTopics...)
	sort.SliceStable(tops, func(i, j int) bool {
		if tops[i].Metadata.Confidence != tops[j].Metadata.Confidence {
			return tops[i].Metadata.Confidence > tops[j].Metadata.Confidence
		}
		return tops[i].ID < tops[j].ID
	})
	refs := make([]types.SubtopicRef, 0, len(tops))
	for _, n := range tops {
		refs = append(refs, types.SubtopicRef{
			Title:       n.Title,
			Description: n.Description,
			Confidence:  n.Metadata.Confidence,
		})
	}
	return refs
}

// slugify derives a stable identifier from a title.
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
