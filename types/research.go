package types

import "time"

// NodeStatus is the lifecycle state of one node in the research tree.
type NodeStatus string

const (
	NodeQueued      NodeStatus = "queued"
	NodeResearching NodeStatus = "researching"
	NodeAggregating NodeStatus = "aggregating"
	NodeCompleted   NodeStatus = "completed"
	NodeError       NodeStatus = "error"
	NodePartial     NodeStatus = "partial"
)

// AgentName identifies a specialized query strategy against a search backend.
type AgentName string

const (
	AgentGeneral   AgentName = "general"
	AgentAcademic  AgentName = "academic"
	AgentVideo     AgentName = "video"
	AgentCommunity AgentName = "community"
	AgentNews      AgentName = "news"
)

// AgentStatus is the outcome of one agent call for one node.
type AgentStatus string

const (
	AgentSuccess AgentStatus = "success"
	AgentFailed  AgentStatus = "error"
	AgentPartial AgentStatus = "partial"
)

// SearchItem is the atomic unit returned by a search backend.
type SearchItem struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Snippet        string  `json:"snippet"`
	Source         string  `json:"source"`
	PublishedAt    string  `json:"published_at,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// AgentResult is one agent's raw output for one node. It is created once
// by the coordinator and never mutated afterward.
type AgentResult struct {
	Agent         AgentName    `json:"agent"`
	Topic         string       `json:"topic"`
	Results       []SearchItem `json:"results"`
	Summary       string       `json:"summary,omitempty"`
	SubtopicHints []string     `json:"subtopic_hints,omitempty"`
	Status        AgentStatus  `json:"status"`
	Error         *Error       `json:"error,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// ResearchNode is one topic at one depth level in the research tree.
// Topic, TopicID and Depth are immutable after creation; Status, Result
// and Children are owned by the orchestrator for the lifetime of a run.
type ResearchNode struct {
	TopicID  string                   `json:"topic_id"`
	Topic    string                   `json:"topic"`
	Depth    int                      `json:"depth"`
	Status   NodeStatus               `json:"status"`
	Result   *AgentCoordinationResult `json:"result,omitempty"`
	Children []*ResearchNode          `json:"children,omitempty"`
}

// AgentCoordinationResult is what the coordinator returns for one node:
// the raw per-agent results plus the aggregated, scored and extracted views.
type AgentCoordinationResult struct {
	Topic               string         `json:"topic"`
	TopicID             string         `json:"topic_id"`
	Depth               int            `json:"depth"`
	AgentResults        []AgentResult  `json:"agent_results"`
	AggregatedContent   *Aggregation   `json:"aggregated_content,omitempty"`
	ScoredResults       []ScoredResult `json:"scored_results,omitempty"`
	IdentifiedSubtopics []SubtopicRef  `json:"identified_subtopics,omitempty"`
	Status              NodeStatus     `json:"status"`
	Errors              []*Error       `json:"errors,omitempty"`
	StartedAt           time.Time      `json:"started_at"`
	CompletedAt         time.Time      `json:"completed_at"`
}

// SubtopicRef is the flat reference the orchestrator uses to schedule a
// child node. The full hierarchy lives in subtopics.ExtractionResult.
type SubtopicRef struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Aggregation is the deduplicated view of one node's agent results.
// AggregatedResult values are read-only after aggregation except for
// score annotation by the scorer.
type Aggregation struct {
	Results           []AggregatedResult `json:"results"`
	Summary           string             `json:"summary,omitempty"`
	SourceAttribution []string           `json:"source_attribution"`
}

// QualityMetrics are 0..1 scores attached to every aggregated result.
type QualityMetrics struct {
	Overall           float64 `json:"overall"`
	Recency           float64 `json:"recency"`
	Uniqueness        float64 `json:"uniqueness"`
	SourceReliability float64 `json:"source_reliability"`
}

// AggregatedResult is a cluster of near-duplicate search items collapsed
// into one entry.
type AggregatedResult struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	URL             string          `json:"url"`
	Snippet         string          `json:"snippet"`
	Sources         []AgentName     `json:"sources"`
	DuplicateCount  int             `json:"duplicate_count"`
	RelevanceScore  float64         `json:"relevance_score"`
	ConfidenceScore float64         `json:"confidence_score"`
	PublishedAt     string          `json:"published_at,omitempty"`
	ContentTypes    []string        `json:"content_types,omitempty"`
	Quality         QualityMetrics  `json:"quality"`
}

// Tier is a coarse quality bucket assigned after final scoring.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
)

// ScoreBreakdown records the contributions that produced a final score.
type ScoreBreakdown struct {
	Base      float64 `json:"base"`
	Boosts    float64 `json:"boosts"`
	Penalties float64 `json:"penalties"`
	Diversity float64 `json:"diversity"`
}

// ScoredResult is an AggregatedResult annotated by the scorer. Ranking is
// a dense 1..N ordinal over one node's aggregated set.
type ScoredResult struct {
	AggregatedResult
	FinalScore     float64        `json:"final_score"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
	Ranking        int            `json:"ranking"`
	Tier           Tier           `json:"tier"`
}

// ResearchStatus is a per-node progress snapshot pushed to observers.
type ResearchStatus struct {
	TopicID         string      `json:"topic_id"`
	Topic           string      `json:"topic"`
	CurrentDepth    int         `json:"current_depth"`
	TotalAgents     int         `json:"total_agents"`
	CompletedAgents int         `json:"completed_agents"`
	ActiveAgents    []AgentName `json:"active_agents,omitempty"`
	Status          NodeStatus  `json:"status"`
	Progress        int         `json:"progress"`
	StartTime       time.Time   `json:"start_time"`
	Errors          []string    `json:"errors,omitempty"`
}

// RecursiveResearchResult is the outcome of a whole research run.
type RecursiveResearchResult struct {
	RunID          string        `json:"run_id"`
	Root           *ResearchNode `json:"root"`
	TotalNodes     int           `json:"total_nodes"`
	CompletedNodes int           `json:"completed_nodes"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    time.Time     `json:"completed_at"`
	Status         NodeStatus    `json:"status"`
}

// TierFor maps a final score to its quality bucket.
func TierFor(score float64) Tier {
	switch {
	case score >= 0.8:
		return TierExcellent
	case score >= 0.6:
		return TierGood
	case score >= 0.4:
		return TierFair
	default:
		return TierPoor
	}
}
