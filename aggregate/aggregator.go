// Package aggregate merges per-agent search results for one topic node:
// it pools every agent's items, clusters near-duplicates, computes
// quality metrics, and emits a deduplicated, confidence-ordered list.
package aggregate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

// Preset selects a boost-factor profile for aggregation.
type Preset string

const (
	PresetQuality       Preset = "quality"
	PresetComprehensive Preset = "comprehensive"
	PresetRecent        Preset = "recent"
	PresetBalanced      Preset = "balanced"
)

// Config controls deduplication and filtering.
type Config struct {
	// DuplicateThreshold is the similarity above which two items are
	// collapsed into one cluster.
	DuplicateThreshold float64 `json:"duplicate_threshold" yaml:"duplicate_threshold"`

	MinRelevanceScore  float64 `json:"min_relevance_score" yaml:"min_relevance_score"`
	MinConfidenceScore float64 `json:"min_confidence_score" yaml:"min_confidence_score"`
	MaxResults         int     `json:"max_results" yaml:"max_results"`

	// Boost factors applied to the confidence score.
	MultiAgentBoost  float64 `json:"multi_agent_boost" yaml:"multi_agent_boost"`
	ReliabilityBoost float64 `json:"reliability_boost" yaml:"reliability_boost"`
	RecencyBoost     float64 `json:"recency_boost" yaml:"recency_boost"`
	UniquenessBoost  float64 `json:"uniqueness_boost" yaml:"uniqueness_boost"`
}

// DefaultConfig returns the balanced preset.
func DefaultConfig() Config {
	return PresetConfig(PresetBalanced)
}

// PresetConfig returns the configuration for a named preset.
func PresetConfig(p Preset) Config {
	cfg := Config{
		DuplicateThreshold: 0.8,
		MinRelevanceScore:  0.2,
		MinConfidenceScore: 0.3,
		MaxResults:         30,
		MultiAgentBoost:    0.10,
		ReliabilityBoost:   0.10,
		RecencyBoost:       0.05,
		UniquenessBoost:    0.05,
	}
	switch p {
	case PresetQuality:
		cfg.MinRelevanceScore = 0.35
		cfg.MinConfidenceScore = 0.45
		cfg.MaxResults = 20
		cfg.ReliabilityBoost = 0.20
	case PresetComprehensive:
		cfg.MinRelevanceScore = 0.1
		cfg.MinConfidenceScore = 0.2
		cfg.MaxResults = 50
		cfg.UniquenessBoost = 0.10
	case PresetRecent:
		cfg.MaxResults = 30
		cfg.RecencyBoost = 0.20
	}
	return cfg
}

// Aggregator deduplicates and scores one node's agent results.
type Aggregator struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates an aggregator.
func New(cfg Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = 0.8
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 30
	}
	return &Aggregator{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "aggregator")),
		now:    time.Now,
	}
}

// candidate is one search item tagged with its originating agent.
type candidate struct {
	item  types.SearchItem
	agent types.AgentName
}

// cluster is a group of near-duplicate candidates.
type cluster struct {
	members []candidate
}

// Aggregate clusters all successful agents' items into deduplicated
// results. The output is deterministic and independent of the order of
// the input agent results: candidates are sorted canonically before
// clustering and cluster IDs are content-derived.
func (a *Aggregator) Aggregate(agentResults []types.AgentResult, topic string, rctx *types.ResearchContext) (*types.Aggregation, error) {
	pool := a.pool(agentResults)
	if len(pool) == 0 {
		return &types.Aggregation{
			Results:           nil,
			Summary:           fmt.Sprintf("no results for %q", topic),
			SourceAttribution: nil,
		}, nil
	}

	clusters := a.clusterPool(pool)

	results := make([]types.AggregatedResult, 0, len(clusters))
	for _, c := range clusters {
		results = append(results, a.collapse(c))
	}

	// Threshold filters.
	filtered := results[:0]
	for _, r := range results {
		if r.RelevanceScore < a.cfg.MinRelevanceScore || r.ConfidenceScore < a.cfg.MinConfidenceScore {
			continue
		}
		filtered = append(filtered, r)
	}
	results = filtered

	// Confidence ordering with a deterministic tiebreak, then cap.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].ConfidenceScore != results[j].ConfidenceScore {
			return results[i].ConfidenceScore > results[j].ConfidenceScore
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > a.cfg.MaxResults {
		results = results[:a.cfg.MaxResults]
	}

	attribution := attributionOf(results)

	a.logger.Debug("aggregation completed",
		zap.String("topic", topic),
		zap.Int("candidates", len(pool)),
		zap.Int("clusters", len(clusters)),
		zap.Int("results", len(results)),
	)

	return &types.Aggregation{
		Results:           results,
		Summary:           fmt.Sprintf("%d unique results for %q from %d candidates", len(results), topic, len(pool)),
		SourceAttribution: attribution,
	}, nil
}

// pool flattens agent results into tagged candidates, dropping failed
// agents and malformed items. A malformed payload costs only that
// agent's contribution.
func (a *Aggregator) pool(agentResults []types.AgentResult) []candidate {
	var pool []candidate
	for _, ar := range agentResults {
		if ar.Status == types.AgentFailed {
			continue
		}
		for _, item := range ar.Results {
			if item.Title == "" && item.URL == "" {
				a.logger.Warn("dropping malformed item", zap.String("agent", string(ar.Agent)))
				continue
			}
			pool = append(pool, candidate{item: item, agent: ar.Agent})
		}
	}

	// Canonical order makes clustering independent of agent ordering.
	sort.SliceStable(pool, func(i, j int) bool {
		ti, tj := normalizeTitle(pool[i].item.Title), normalizeTitle(pool[j].item.Title)
		if ti != tj {
			return ti < tj
		}
		ui, uj := normalizeURL(pool[i].item.URL), normalizeURL(pool[j].item.URL)
		if ui != uj {
			return ui < uj
		}
		return pool[i].agent < pool[j].agent
	})
	return pool
}

// clusterPool greedily groups candidates whose similarity to a cluster's
// representative exceeds the duplicate threshold.
func (a *Aggregator) clusterPool(pool []candidate) []*cluster {
	var clusters []*cluster
	for _, cand := range pool {
		placed := false
		for _, c := range clusters {
			rep := c.members[0]
			s := similarity(rep.item.Title, rep.item.URL, cand.item.Title, cand.item.URL)
			if s >= a.cfg.DuplicateThreshold {
				c.members = append(c.members, cand)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{members: []candidate{cand}})
		}
	}
	return clusters
}

// collapse turns one cluster into a single AggregatedResult.
func (a *Aggregator) collapse(c *cluster) types.AggregatedResult {
	rep := c.members[0]

	// Longest snippet wins; ties resolve lexicographically for determinism.
	snippet := rep.item.Snippet
	newest := rep.item.PublishedAt
	maxRelevance := declaredRelevance(rep.item)
	agentSet := map[types.AgentName]struct{}{}
	for _, m := range c.members {
		agentSet[m.agent] = struct{}{}
		if len(m.item.Snippet) > len(snippet) ||
			(len(m.item.Snippet) == len(snippet) && m.item.Snippet < snippet) {
			snippet = m.item.Snippet
		}
		if m.item.PublishedAt > newest {
			newest = m.item.PublishedAt
		}
		if r := declaredRelevance(m.item); r > maxRelevance {
			maxRelevance = r
		}
	}

	sources := make([]types.AgentName, 0, len(agentSet))
	for name := range agentSet {
		sources = append(sources, name)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	dupCount := len(c.members) - 1
	quality := types.QualityMetrics{
		Recency:           recencyScore(newest, a.now()),
		Uniqueness:        uniquenessScore(dupCount),
		SourceReliability: sourceReliability(rep.item.URL),
	}
	quality.Overall = 0.4*maxRelevance + 0.3*quality.SourceReliability +
		0.15*quality.Recency + 0.15*quality.Uniqueness

	confidence := a.confidence(maxRelevance, quality, len(sources))

	return types.AggregatedResult{
		ID:              clusterID(rep.item),
		Title:           rep.item.Title,
		URL:             rep.item.URL,
		Snippet:         snippet,
		Sources:         sources,
		DuplicateCount:  dupCount,
		RelevanceScore:  maxRelevance,
		ConfidenceScore: confidence,
		PublishedAt:     newest,
		ContentTypes:    contentTypesOf(rep.item.URL, rep.item.Source),
		Quality:         quality,
	}
}

// confidence combines relevance, quality and corroboration under the
// configured boost factors, clamped to [0,1].
func (a *Aggregator) confidence(relevance float64, q types.QualityMetrics, sourceCount int) float64 {
	conf := 0.5*relevance + 0.3*q.SourceReliability + 0.2*q.Recency

	if sourceCount > 1 {
		conf += a.cfg.MultiAgentBoost * float64(sourceCount-1)
	}
	if q.SourceReliability >= 0.8 {
		conf += a.cfg.ReliabilityBoost
	}
	if q.Recency >= 0.8 {
		conf += a.cfg.RecencyBoost
	}
	if q.Uniqueness >= 0.9 {
		conf += a.cfg.UniquenessBoost
	}

	return clamp01(conf)
}

// declaredRelevance falls back to a neutral 0.5 when the backend did not
// score the item.
func declaredRelevance(item types.SearchItem) float64 {
	if item.RelevanceScore <= 0 {
		return 0.5
	}
	return clamp01(item.RelevanceScore)
}

// clusterID derives a stable identifier from the cluster representative,
// so that aggregating the same inputs twice yields the same IDs.
func clusterID(item types.SearchItem) string {
	h := sha256.Sum256([]byte(normalizeTitle(item.Title) + "|" + domainOf(item.URL)))
	return hex.EncodeToString(h[:8])
}

// attributionOf collects the sorted set of contributing domains.
func attributionOf(results []types.AggregatedResult) []string {
	set := map[string]struct{}{}
	for _, r := range results {
		if d := domainOf(r.URL); d != "" {
			set[d] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
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
