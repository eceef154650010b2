// Package researchflow provides a top-level convenience entry point for
// assembling a research service with minimal boilerplate.
//
// Usage:
//
//	import "github.com/studypilot/researchflow"
//
//	svc, err := researchflow.New(myBackend)
//	svc, err := researchflow.New(myBackend,
//		researchflow.WithSynthesizer(mySynth),
//		researchflow.WithMaxDepth(2),
//		researchflow.WithLogger(logger))
//
// The facade wires the default five-agent roster, aggregation, scoring,
// and streaming around the given search backend. Callers who need
// per-agent configuration, history persistence, or metrics should
// assemble the pieces directly from the research package instead.
package researchflow

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/aggregate"
	"github.com/studypilot/researchflow/agents"
	"github.com/studypilot/researchflow/embedding"
	"github.com/studypilot/researchflow/research"
	"github.com/studypilot/researchflow/scoring"
	"github.com/studypilot/researchflow/streaming"
	"github.com/studypilot/researchflow/subtopics"
)

// Option configures the service created by [New].
type Option func(*options)

type options struct {
	synth             subtopics.Synthesizer
	logger            *zap.Logger
	maxDepth          int
	maxSubtopics      int
	agentTimeout      time.Duration
	maxConcurrentRuns int
	aggregation       aggregate.Preset
	history           research.HistoryStore
	embedder          *embedding.Service
}

// WithSynthesizer enables subtopic extraction. Without one, every run
// produces a single root node.
func WithSynthesizer(s subtopics.Synthesizer) Option {
	return func(o *options) { o.synth = s }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMaxDepth caps recursion depth. Zero keeps the default of 3.
func WithMaxDepth(depth int) Option {
	return func(o *options) { o.maxDepth = depth }
}

// WithMaxSubtopics caps subtopics spawned per node. Zero keeps the
// default of 5.
func WithMaxSubtopics(n int) Option {
	return func(o *options) { o.maxSubtopics = n }
}

// WithAgentTimeout bounds one agent attempt. Zero keeps the default
// of 30 seconds.
func WithAgentTimeout(d time.Duration) Option {
	return func(o *options) { o.agentTimeout = d }
}

// WithMaxConcurrentRuns caps simultaneously executing runs. Zero keeps
// the default of 3.
func WithMaxConcurrentRuns(n int) Option {
	return func(o *options) { o.maxConcurrentRuns = n }
}

// WithAggregationPreset selects the aggregation weighting preset.
func WithAggregationPreset(p aggregate.Preset) Option {
	return func(o *options) { o.aggregation = p }
}

// WithHistory persists finished runs to the given store.
func WithHistory(h research.HistoryStore) Option {
	return func(o *options) { o.history = h }
}

// WithEmbedder embeds each node's aggregated content for downstream
// semantic retrieval. The caller keeps ownership and closes it.
func WithEmbedder(e *embedding.Service) Option {
	return func(o *options) { o.embedder = e }
}

// New assembles a ready-to-use research service around backend.
// Call Shutdown on the returned service when done.
func New(backend agents.Backend, opts ...Option) (*research.Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("search backend is required")
	}
	o := &options{aggregation: aggregate.PresetBalanced}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	roster := agents.DefaultAgentSet(backend, logger)
	aggregator := aggregate.New(aggregate.PresetConfig(o.aggregation), logger)

	scoreCfg := scoring.DefaultConfig()
	scorer := scoring.New(scoreCfg, logger)

	var extractor *subtopics.Extractor
	if o.synth != nil {
		extractor = subtopics.New(subtopics.DefaultConfig(), o.synth, logger)
	}

	coordCfg := research.DefaultCoordinatorConfig()
	if o.agentTimeout > 0 {
		coordCfg.AgentTimeout = o.agentTimeout
	}
	coordinator := research.NewCoordinator(coordCfg, roster, aggregator, scorer, extractor, logger)
	if o.embedder != nil {
		coordinator.SetEmbedder(o.embedder)
	}

	svcCfg := research.DefaultServiceConfig()
	svcCfg.Coordinator = coordCfg
	if o.maxDepth > 0 {
		svcCfg.Orchestrator.MaxDepth = o.maxDepth
	}
	if o.maxSubtopics > 0 {
		svcCfg.Orchestrator.MaxSubtopicsPerLevel = o.maxSubtopics
	}
	if o.maxConcurrentRuns > 0 {
		svcCfg.MaxConcurrentRuns = o.maxConcurrentRuns
	}

	streams := streaming.NewManager(streaming.DefaultConfig(), logger)
	return research.NewService(svcCfg, coordinator, streams, o.history, logger), nil
}
