// Package agents defines the search backend contract and the specialized
// agent wrappers the coordinator dispatches. Each agent is a query
// strategy over an external backend (academic, video, community, ...);
// the backend itself is an opaque collaborator.
package agents

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/studypilot/researchflow/types"
)

// Backend is the external search collaborator. Implementations can wrap
// SerpAPI, Tavily, Brave, arXiv, YouTube Data API, etc. Timeouts,
// malformed responses and empty results are ordinary agent-level
// failures, never pipeline-fatal.
type Backend interface {
	// Search performs one query and returns raw items.
	Search(ctx context.Context, query string, opts SearchOptions) ([]types.SearchItem, error)
	// Name returns the backend name.
	Name() string
}

// SearchOptions configures a single backend call.
type SearchOptions struct {
	MaxResults int      `json:"max_results"`
	Language   string   `json:"language,omitempty"`
	TimeRange  string   `json:"time_range,omitempty"` // "day", "week", "month", "year"
	Domains    []string `json:"domains,omitempty"`
}

// DefaultSearchOptions returns sensible defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		MaxResults: 10,
		Language:   "en",
	}
}

// Config configures one agent wrapper.
type Config struct {
	Name       types.AgentName `json:"name" yaml:"name"`
	Timeout    time.Duration   `json:"timeout" yaml:"timeout"`
	MaxResults int             `json:"max_results" yaml:"max_results"`

	// RatePerSecond caps backend calls per agent; zero disables limiting.
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`
	RateBurst     int     `json:"rate_burst" yaml:"rate_burst"`
}

// DefaultConfig returns the default per-agent configuration.
func DefaultConfig(name types.AgentName) Config {
	return Config{
		Name:          name,
		Timeout:       30 * time.Second,
		MaxResults:    10,
		RatePerSecond: 5,
		RateBurst:     10,
	}
}

// Agent wraps a Backend with a query strategy and a rate limiter.
type Agent struct {
	cfg     Config
	backend Backend
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates an agent over the given backend.
func New(cfg Config, backend Backend, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Agent{
		cfg:     cfg,
		backend: backend,
		limiter: limiter,
		logger:  logger.With(zap.String("component", "agent"), zap.String("agent", string(cfg.Name))),
	}
}

// Name returns the agent's strategy name.
func (a *Agent) Name() types.AgentName {
	return a.cfg.Name
}

// Timeout returns the per-call timeout for this agent.
func (a *Agent) Timeout() time.Duration {
	return a.cfg.Timeout
}

// Search runs one strategy-decorated query against the backend. The
// caller owns retries; this method performs exactly one backend call.
func (a *Agent) Search(ctx context.Context, topic string) ([]types.SearchItem, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	query, opts := BuildQuery(a.cfg.Name, topic)
	opts.MaxResults = a.cfg.MaxResults

	start := time.Now()
	items, err := a.backend.Search(ctx, query, opts)
	if err != nil {
		a.logger.Warn("backend search failed",
			zap.String("query", query),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	a.logger.Debug("backend search completed",
		zap.String("query", query),
		zap.Int("results", len(items)),
		zap.Duration("duration", time.Since(start)),
	)
	return items, nil
}

// BuildQuery decorates the topic according to the agent strategy. The
// decoration is intentionally thin; real relevance work happens in the
// aggregator and scorer.
func BuildQuery(name types.AgentName, topic string) (string, SearchOptions) {
	opts := DefaultSearchOptions()
	switch name {
	case types.AgentAcademic:
		return topic + " research paper study", opts
	case types.AgentVideo:
		return topic + " tutorial video explained", opts
	case types.AgentCommunity:
		return topic + " discussion forum experiences", opts
	case types.AgentNews:
		opts.TimeRange = "month"
		return topic + " latest developments", opts
	default:
		return topic, opts
	}
}

// DefaultAgentSet builds the standard five-agent roster over one backend.
func DefaultAgentSet(backend Backend, logger *zap.Logger) []*Agent {
	names := []types.AgentName{
		types.AgentGeneral,
		types.AgentAcademic,
		types.AgentVideo,
		types.AgentCommunity,
		types.AgentNews,
	}
	out := make([]*Agent, 0, len(names))
	for _, n := range names {
		out = append(out, New(DefaultConfig(n), backend, logger))
	}
	return out
}
