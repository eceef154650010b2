// Package research contains the pipeline core: the coordinator fans one
// topic out to the agent roster, the orchestrator grows the recursive
// research tree, and the service owns run lifecycles.
package research

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studypilot/researchflow/agents"
	"github.com/studypilot/researchflow/aggregate"
	"github.com/studypilot/researchflow/embedding"
	"github.com/studypilot/researchflow/internal/retry"
	"github.com/studypilot/researchflow/scoring"
	"github.com/studypilot/researchflow/subtopics"
	"github.com/studypilot/researchflow/types"
)

// Observer receives streaming frames for one run. A nil observer is
// allowed everywhere; delivery is always fire-and-forget.
type Observer func(update types.StreamingResearchUpdate)

// CoordinatorConfig configures the per-node fan-out.
type CoordinatorConfig struct {
	// AgentTimeout bounds one agent attempt, not the whole retry loop.
	AgentTimeout time.Duration `json:"agent_timeout" yaml:"agent_timeout"`

	// Retry drives the per-agent retry loop. Nil uses the default
	// policy of two retries with exponential backoff.
	Retry *retry.Policy `json:"-" yaml:"-"`
}

// DefaultCoordinatorConfig returns the default fan-out settings.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		AgentTimeout: 30 * time.Second,
	}
}

// Request describes one node's research pass.
type Request struct {
	TopicID string
	Topic   string
	Depth   int
	Context *types.ResearchContext

	// ExtractSubtopics is cleared by the orchestrator at the deepest
	// level so leaf nodes never propose children.
	ExtractSubtopics bool

	Observer Observer
}

// Coordinator runs every agent concurrently for one topic, then feeds
// the survivors through aggregation, scoring and subtopic extraction.
// A node fails only when every agent fails; anything less is a partial
// result.
type Coordinator struct {
	cfg        CoordinatorConfig
	agents     []*agents.Agent
	aggregator *aggregate.Aggregator
	scorer     *scoring.Scorer
	extractor  *subtopics.Extractor
	embedder   *embedding.Service
	retryer    retry.Retryer
	logger     *zap.Logger
}

// SetEmbedder attaches an optional embedding service. When set, each
// node's aggregated content is chunked and embedded after scoring so
// downstream semantic retrieval has vectors ready. Call before the
// first Research.
func (c *Coordinator) SetEmbedder(e *embedding.Service) {
	c.embedder = e
}

// NewCoordinator wires the per-node pipeline.
func NewCoordinator(
	cfg CoordinatorConfig,
	roster []*agents.Agent,
	aggregator *aggregate.Aggregator,
	scorer *scoring.Scorer,
	extractor *subtopics.Extractor,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = 30 * time.Second
	}
	policy := cfg.Retry
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	return &Coordinator{
		cfg:        cfg,
		agents:     roster,
		aggregator: aggregator,
		scorer:     scorer,
		extractor:  extractor,
		retryer:    retry.NewBackoffRetryer(policy, logger),
		logger:     logger.With(zap.String("component", "coordinator")),
	}
}

// Research runs the full per-node pipeline and never returns an error
// for individual agent failures; the error return covers only total
// failure of the node.
func (c *Coordinator) Research(ctx context.Context, req Request) (*types.AgentCoordinationResult, error) {
	result := &types.AgentCoordinationResult{
		Topic:     req.Topic,
		TopicID:   req.TopicID,
		Depth:     req.Depth,
		Status:    types.NodeResearching,
		StartedAt: time.Now(),
	}

	total := len(c.agents)
	c.emitProgress(req, 0, 0, total, "research started")

	var (
		mu        sync.Mutex
		completed int
	)
	agentResults := make([]types.AgentResult, len(c.agents))

	// Agent failures never abort the group; every agent gets its say.
	var g errgroup.Group
	for i, agent := range c.agents {
		g.Go(func() error {
			agentResults[i] = c.runAgent(ctx, agent, req.Topic)

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()

			// Agent fan-out owns the first 80 percent of the bar.
			c.emitProgress(req, done*80/total, done, total, "")
			return nil
		})
	}
	_ = g.Wait()

	result.AgentResults = agentResults

	succeeded := 0
	for _, ar := range agentResults {
		if ar.Status == types.AgentSuccess || ar.Status == types.AgentPartial {
			succeeded++
		} else if ar.Error != nil {
			result.Errors = append(result.Errors, ar.Error)
		}
	}

	if succeeded == 0 {
		result.Status = types.NodeError
		result.CompletedAt = time.Now()
		err := types.NewError(types.ErrAgentFailed, "all agents failed for topic "+req.Topic)
		c.emitError(req, err, true)
		return result, err
	}

	result.Status = types.NodeAggregating
	c.emitStatus(req, result, completed, total)

	agg, err := c.aggregator.Aggregate(agentResults, req.Topic, req.Context)
	if err != nil {
		result.Status = types.NodeError
		result.CompletedAt = time.Now()
		aggErr := types.NewError(types.ErrAggregation, "aggregation failed").WithCause(err)
		result.Errors = append(result.Errors, aggErr)
		c.emitError(req, aggErr, false)
		return result, aggErr
	}
	result.AggregatedContent = agg
	result.ScoredResults = c.scorer.ScoreAndRank(agg.Results, req.Topic, req.Context)

	if c.embedder != nil {
		if err := c.indexForRetrieval(ctx, req, result.ScoredResults); err != nil {
			// Retrieval prep failure never costs the node its results.
			c.logger.Warn("content embedding failed",
				zap.String("topic_id", req.TopicID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, types.NewError(types.ErrEmbeddingBackend, "content embedding failed").WithCause(err))
		}
	}

	if req.ExtractSubtopics && c.extractor != nil {
		extraction, err := c.extractor.Extract(ctx, agentResults, agg, req.Topic, req.Context)
		if err != nil {
			// Extraction failure costs only the node's children.
			c.logger.Warn("subtopic extraction failed",
				zap.String("topic_id", req.TopicID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, types.NewError(types.ErrExtraction, "subtopic extraction failed").WithCause(err))
		} else {
			result.IdentifiedSubtopics = extraction.Refs()
		}
	}

	if succeeded == total {
		result.Status = types.NodeCompleted
	} else {
		result.Status = types.NodePartial
	}
	result.CompletedAt = time.Now()

	c.emitProgress(req, 100, completed, total, "research finished")
	c.emitContent(req, result)

	c.logger.Info("node research finished",
		zap.String("topic_id", req.TopicID),
		zap.Int("depth", req.Depth),
		zap.Int("agents_succeeded", succeeded),
		zap.Int("agents_total", total),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// runAgent performs one agent's strategy with per-attempt timeout and
// retry, converting every outcome into an AgentResult.
func (c *Coordinator) runAgent(ctx context.Context, agent *agents.Agent, topic string) types.AgentResult {
	ar := types.AgentResult{
		Agent:     agent.Name(),
		Topic:     topic,
		Timestamp: time.Now(),
	}

	timeout := c.cfg.AgentTimeout
	if agent.Timeout() > 0 {
		timeout = agent.Timeout()
	}

	items, err := retry.DoWithResultTyped(c.retryer, ctx, func() ([]types.SearchItem, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return agent.Search(attemptCtx, topic)
	})
	if err != nil {
		code := types.ErrAgentFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = types.ErrAgentTimeout
		}
		ar.Status = types.AgentFailed
		ar.Error = types.NewError(code, "agent "+string(agent.Name())+" failed").
			WithCause(err).
			WithAgent(agent.Name()).
			WithRetryable(code == types.ErrAgentTimeout)
		return ar
	}

	ar.Results = items
	ar.Status = types.AgentSuccess
	if len(items) == 0 {
		ar.Status = types.AgentPartial
	}
	return ar
}

// indexForRetrieval chunks the node's ranked snippets with hierarchy
// metadata and embeds them. Cache failures degrade inside the service;
// only a backend failure surfaces here.
func (c *Coordinator) indexForRetrieval(ctx context.Context, req Request, results []types.ScoredResult) error {
	var chunks []embedding.Chunk
	for _, sr := range results {
		if sr.Snippet == "" {
			continue
		}
		chunks = append(chunks, c.embedder.Chunk(sr.Snippet, embedding.ChunkMetadata{
			SourceID:      sr.ID,
			ParentTopic:   req.Topic,
			HierarchyPath: []string{req.TopicID},
		})...)
	}
	if len(chunks) == 0 {
		return nil
	}
	_, err := c.embedder.EmbedChunks(ctx, chunks)
	return err
}

func (c *Coordinator) emitProgress(req Request, percent, completed, total int, msg string) {
	if req.Observer == nil {
		return
	}
	req.Observer(types.NewProgressUpdate(req.TopicID, &types.ProgressPayload{
		Percent:         percent,
		CompletedAgents: completed,
		TotalAgents:     total,
		Message:         msg,
	}))
}

func (c *Coordinator) emitStatus(req Request, result *types.AgentCoordinationResult, completed, total int) {
	if req.Observer == nil {
		return
	}
	req.Observer(types.NewStatusUpdate(req.TopicID, &types.ResearchStatus{
		TopicID:         req.TopicID,
		Topic:           req.Topic,
		CurrentDepth:    req.Depth,
		TotalAgents:     total,
		CompletedAgents: completed,
		Status:          result.Status,
		StartTime:       result.StartedAt,
	}))
}

func (c *Coordinator) emitContent(req Request, result *types.AgentCoordinationResult) {
	if req.Observer == nil {
		return
	}
	count := 0
	if result.AggregatedContent != nil {
		count = len(result.AggregatedContent.Results)
	}
	req.Observer(types.NewContentUpdate(req.TopicID, &types.ContentPayload{
		Depth:       req.Depth,
		ResultCount: count,
		Subtopics:   result.IdentifiedSubtopics,
	}))
}

func (c *Coordinator) emitError(req Request, err *types.Error, recoverable bool) {
	if req.Observer == nil {
		return
	}
	req.Observer(types.NewErrorUpdate(req.TopicID, &types.ErrorPayload{
		Message:     err.Message,
		Code:        err.Code,
		Recoverable: recoverable,
	}))
}
