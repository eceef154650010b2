// Package scoring applies a weighted multi-factor scoring model plus
// context boosts, penalties, and a diversity adjustment to aggregated
// results, producing the final ranked and tiered list for one node.
package scoring

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

// Config controls scoring behavior.
type Config struct {
	Preset Preset `json:"preset" yaml:"preset"`

	// DiversityWeight is the additive bonus for the first occurrence of a
	// new source domain or content type in the ranked list. Deliberately
	// a tunable: higher values trade precision for exploration.
	DiversityWeight float64 `json:"diversity_weight" yaml:"diversity_weight"`

	// Boosts (additive).
	UserLevelBoost     float64 `json:"user_level_boost" yaml:"user_level_boost"`
	LearningStyleBoost float64 `json:"learning_style_boost" yaml:"learning_style_boost"`
	KeywordBoost       float64 `json:"keyword_boost" yaml:"keyword_boost"`
	ContentTypeBoost   float64 `json:"content_type_boost" yaml:"content_type_boost"`

	// Penalties (subtractive).
	DuplicatePenalty  float64 `json:"duplicate_penalty" yaml:"duplicate_penalty"`
	LowQualityFloor   float64 `json:"low_quality_floor" yaml:"low_quality_floor"`
	LowQualityPenalty float64 `json:"low_quality_penalty" yaml:"low_quality_penalty"`
	StalePenalty      float64 `json:"stale_penalty" yaml:"stale_penalty"`
	ExcludePenalty    float64 `json:"exclude_penalty" yaml:"exclude_penalty"`
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		Preset:             PresetGeneral,
		DiversityWeight:    0.05,
		UserLevelBoost:     0.08,
		LearningStyleBoost: 0.08,
		KeywordBoost:       0.10,
		ContentTypeBoost:   0.05,
		DuplicatePenalty:   0.05,
		LowQualityFloor:    0.4,
		LowQualityPenalty:  0.10,
		StalePenalty:       0.10,
		ExcludePenalty:     0.25,
	}
}

// Scorer ranks aggregated results.
type Scorer struct {
	cfg     Config
	weights Weights
	logger  *zap.Logger
}

// New creates a scorer with the given configuration.
func New(cfg Config, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DiversityWeight < 0 {
		cfg.DiversityWeight = 0
	}
	return &Scorer{
		cfg:     cfg,
		weights: PresetWeights(cfg.Preset),
		logger:  logger.With(zap.String("component", "scorer")),
	}
}

// ScoreAndRank scores every aggregated result, applies the diversity
// adjustment in rank order, and returns the final list with dense
// 1-based rankings and tiers. Results whose scoring input is unusable
// are excluded rather than failing the batch.
func (s *Scorer) ScoreAndRank(results []types.AggregatedResult, topic string, rctx *types.ResearchContext) []types.ScoredResult {
	if rctx == nil {
		rctx = &types.ResearchContext{}
	}

	scored := make([]types.ScoredResult, 0, len(results))
	for _, r := range results {
		if r.ID == "" {
			// A result without an identity cannot participate in diversity
			// tracking or stable ranking; drop it, keep the batch.
			s.logger.Warn("excluding unscored result", zap.String("title", r.Title))
			continue
		}
		base := s.baseScore(r)
		boosts := s.boosts(r, topic, rctx)
		penalties := s.penalties(r, rctx)

		final := clamp01(base + boosts - penalties)
		scored = append(scored, types.ScoredResult{
			AggregatedResult: r,
			FinalScore:       final,
			ScoreBreakdown: types.ScoreBreakdown{
				Base:      base,
				Boosts:    boosts,
				Penalties: penalties,
			},
		})
	}

	// Pre-diversity ordering with a deterministic tiebreak.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return scored[i].ID < scored[j].ID
	})

	// Diversity bonus walks the ranked list top-down so earlier diverse
	// results are favored over later ones repeating a domain or type.
	seenDomains := map[string]struct{}{}
	seenTypes := map[string]struct{}{}
	for i := range scored {
		bonus := 0.0
		if d := domainKey(scored[i].URL); d != "" {
			if _, ok := seenDomains[d]; !ok {
				seenDomains[d] = struct{}{}
				bonus += s.cfg.DiversityWeight
			}
		}
		for _, ct := range scored[i].ContentTypes {
			if _, ok := seenTypes[ct]; !ok {
				seenTypes[ct] = struct{}{}
				bonus += s.cfg.DiversityWeight
			}
		}
		if bonus > 0 {
			scored[i].ScoreBreakdown.Diversity = bonus
			scored[i].FinalScore = clamp01(scored[i].FinalScore + bonus)
		}
	}

	// Final ordering and dense ranking.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return scored[i].ID < scored[j].ID
	})
	for i := range scored {
		scored[i].Ranking = i + 1
		scored[i].Tier = types.TierFor(scored[i].FinalScore)
	}

	return scored
}

// baseScore is the weighted sum of relevance, confidence and quality
// metrics, plus an engagement term for community-sourced content.
func (s *Scorer) baseScore(r types.AggregatedResult) float64 {
	w := s.weights
	base := w.Relevance*r.RelevanceScore +
		w.Confidence*r.ConfidenceScore +
		w.Overall*r.Quality.Overall +
		w.Recency*r.Quality.Recency +
		w.Uniqueness*r.Quality.Uniqueness +
		w.SourceReliability*r.Quality.SourceReliability

	if w.Engagement > 0 && hasType(r.ContentTypes, "community") {
		// Corroboration across agents is the best engagement proxy
		// available without backend-specific vote counts.
		engagement := float64(len(r.Sources)) / 3.0
		if engagement > 1 {
			engagement = 1
		}
		base += w.Engagement * engagement
	}
	return clamp01(base)
}

// boosts computes the additive context boosts.
func (s *Scorer) boosts(r types.AggregatedResult, topic string, rctx *types.ResearchContext) float64 {
	text := strings.ToLower(r.Title + " " + r.Snippet)
	var total float64

	if rctx.UserLevel != "" && levelMatches(rctx.UserLevel, text) {
		total += s.cfg.UserLevelBoost
	}
	if rctx.LearningStyle != "" && styleMatches(rctx.LearningStyle, r.ContentTypes, text) {
		total += s.cfg.LearningStyleBoost
	}

	keywords := append([]string{}, rctx.Keywords...)
	keywords = append(keywords, strings.Fields(strings.ToLower(topic))...)
	if n := keywordHits(keywords, text); n > 0 {
		frac := float64(n) / float64(len(keywords))
		total += s.cfg.KeywordBoost * frac
	}

	for _, pref := range rctx.PreferredContentTypes {
		if hasType(r.ContentTypes, pref) {
			total += s.cfg.ContentTypeBoost
			break
		}
	}
	return total
}

// penalties computes the subtractive adjustments.
func (s *Scorer) penalties(r types.AggregatedResult, rctx *types.ResearchContext) float64 {
	var total float64

	if r.DuplicateCount >= 3 {
		total += s.cfg.DuplicatePenalty * float64(r.DuplicateCount-2)
	}
	if r.Quality.Overall < s.cfg.LowQualityFloor {
		total += s.cfg.LowQualityPenalty
	}
	if rctx.TimePreference == types.TimeRecent && r.Quality.Recency <= 0.4 {
		total += s.cfg.StalePenalty
	}

	text := strings.ToLower(r.Title + " " + r.Snippet)
	for _, kw := range rctx.ExcludeKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			total += s.cfg.ExcludePenalty
			break
		}
	}
	return total
}

var levelMarkers = map[types.UserLevel][]string{
	types.LevelBeginner:     {"introduction", "intro", "basics", "beginner", "what is", "explained", "simple"},
	types.LevelIntermediate: {"guide", "overview", "how to", "in practice", "tutorial"},
	types.LevelAdvanced:     {"advanced", "in-depth", "research", "analysis", "mechanism", "theory"},
}

func levelMatches(level types.UserLevel, text string) bool {
	for _, marker := range levelMarkers[level] {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func styleMatches(style types.LearningStyle, contentTypes []string, text string) bool {
	switch style {
	case types.StyleVideo, types.StyleVisual:
		return hasType(contentTypes, "video") ||
			strings.Contains(text, "diagram") || strings.Contains(text, "animation")
	case types.StyleInteractive:
		return strings.Contains(text, "interactive") || strings.Contains(text, "exercise") ||
			strings.Contains(text, "simulation")
	case types.StyleConversational:
		return hasType(contentTypes, "community")
	case types.StyleTextual:
		return hasType(contentTypes, "article") || hasType(contentTypes, "academic")
	}
	return false
}

func keywordHits(keywords []string, text string) int {
	n := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			n++
		}
	}
	return n
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

func hasType(contentTypes []string, want string) bool {
	for _, ct := range contentTypes {
		if strings.EqualFold(ct, want) {
			return true
		}
	}
	return false
}

func domainKey(rawURL string) string {
	i := strings.Index(rawURL, "://")
	if i < 0 {
		return rawURL
	}
	rest := rawURL[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimPrefix(strings.ToLower(rest), "www.")
}
