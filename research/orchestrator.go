package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studypilot/researchflow/types"
)

// OrchestratorConfig bounds the recursive research tree.
type OrchestratorConfig struct {
	// MaxDepth is the number of tree levels. The root is depth 0, so
	// nodes at depth MaxDepth-1 never schedule children.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// MaxSubtopicsPerLevel caps the children scheduled from one node.
	MaxSubtopicsPerLevel int `json:"max_subtopics_per_level" yaml:"max_subtopics_per_level"`

	// Workers is the number of concurrent node processors.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultOrchestratorConfig returns the default tree bounds.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxDepth:             3,
		MaxSubtopicsPerLevel: 5,
		Workers:              4,
	}
}

// Validate rejects bounds that cannot produce a tree.
func (c OrchestratorConfig) Validate() error {
	if c.MaxDepth < 1 {
		return types.NewError(types.ErrInvalidRequest, "max_depth must be at least 1")
	}
	if c.MaxSubtopicsPerLevel < 0 {
		return types.NewError(types.ErrInvalidRequest, "max_subtopics_per_level must not be negative")
	}
	return nil
}

// maxNodes is the worst-case tree size at these bounds; it sizes the
// work queue so enqueues never block a worker.
func (c OrchestratorConfig) maxNodes() int {
	total, levelWidth := 0, 1
	for d := 0; d < c.MaxDepth; d++ {
		total += levelWidth
		levelWidth *= c.MaxSubtopicsPerLevel
		if levelWidth > 1<<16 {
			levelWidth = 1 << 16
		}
	}
	return total
}

// Orchestrator grows the research tree through a work queue drained by
// a fixed worker pool. Workers pull one node at a time, run the
// coordinator on it, and enqueue any children while the queue stays
// within the depth and breadth bounds.
type Orchestrator struct {
	cfg         OrchestratorConfig
	coordinator *Coordinator
	logger      *zap.Logger

	// OnStatusUpdate fires after a node reaches a terminal state.
	OnStatusUpdate func(node *types.ResearchNode)

	// OnDepthComplete fires when every node at one depth is done.
	OnDepthComplete func(depth int)
}

// NewOrchestrator creates an orchestrator over the given coordinator.
func NewOrchestrator(cfg OrchestratorConfig, coordinator *Coordinator, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.MaxSubtopicsPerLevel <= 0 {
		cfg.MaxSubtopicsPerLevel = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Orchestrator{
		cfg:         cfg,
		coordinator: coordinator,
		logger:      logger.With(zap.String("component", "orchestrator")),
	}
}

type runState struct {
	mu      sync.Mutex
	queue   chan *types.ResearchNode
	pending sync.WaitGroup

	totalNodes     int
	completedNodes int

	// perDepth counts unprocessed nodes at each depth.
	perDepth map[int]int
}

// Run performs one complete recursive research pass rooted at topic.
// The run ID doubles as the root node's topic ID, so every node ID in
// the tree is prefixed by the run it belongs to. An empty runID gets a
// fresh UUID. Run blocks until the tree is drained or the context is
// cancelled; cancellation returns the partial result alongside the
// error.
func (o *Orchestrator) Run(ctx context.Context, runID, topic string, rctx *types.ResearchContext, observer Observer) (*types.RecursiveResearchResult, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	root := &types.ResearchNode{
		TopicID: runID,
		Topic:   topic,
		Depth:   0,
		Status:  types.NodeQueued,
	}

	result := &types.RecursiveResearchResult{
		RunID:     runID,
		Root:      root,
		StartedAt: time.Now(),
		Status:    types.NodeResearching,
	}

	state := &runState{
		queue:    make(chan *types.ResearchNode, o.cfg.maxNodes()),
		perDepth: make(map[int]int),
	}
	state.schedule(root)

	go func() {
		state.pending.Wait()
		close(state.queue)
	}()

	var g errgroup.Group
	for w := 0; w < o.cfg.Workers; w++ {
		g.Go(func() error {
			for node := range state.queue {
				o.processNode(ctx, node, rctx, state, observer)
				state.pending.Done()
			}
			return nil
		})
	}
	_ = g.Wait()

	state.mu.Lock()
	result.TotalNodes = state.totalNodes
	result.CompletedNodes = state.completedNodes
	state.mu.Unlock()

	result.CompletedAt = time.Now()
	result.Status = runStatus(root, result.TotalNodes, result.CompletedNodes)

	if observer != nil {
		observer(types.NewCompleteUpdate(root.TopicID, &types.CompletePayload{
			TotalNodes:     result.TotalNodes,
			CompletedNodes: result.CompletedNodes,
			Status:         result.Status,
			DurationMS:     result.CompletedAt.Sub(result.StartedAt).Milliseconds(),
		}))
	}

	if err := ctx.Err(); err != nil {
		return result, types.NewError(types.ErrRunCancelled, "research run cancelled").WithCause(err)
	}

	o.logger.Info("research run finished",
		zap.String("run_id", result.RunID),
		zap.Int("total_nodes", result.TotalNodes),
		zap.Int("completed_nodes", result.CompletedNodes),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// processNode runs one node through the coordinator and schedules its
// children.
func (o *Orchestrator) processNode(ctx context.Context, node *types.ResearchNode, rctx *types.ResearchContext, state *runState, observer Observer) {
	if ctx.Err() != nil {
		node.Status = types.NodeError
		o.finishNode(node, state, false)
		return
	}

	node.Status = types.NodeResearching

	coordResult, err := o.coordinator.Research(ctx, Request{
		TopicID:          node.TopicID,
		Topic:            node.Topic,
		Depth:            node.Depth,
		Context:          rctx,
		ExtractSubtopics: node.Depth+1 < o.cfg.MaxDepth,
		Observer:         observer,
	})
	node.Result = coordResult
	if err != nil {
		node.Status = types.NodeError
		o.finishNode(node, state, false)
		return
	}
	node.Status = coordResult.Status

	// Children must be scheduled before the parent is marked done, or
	// the queue could close under them.
	if node.Depth+1 < o.cfg.MaxDepth {
		o.scheduleChildren(node, coordResult.IdentifiedSubtopics, state)
	}

	o.finishNode(node, state, true)
}

// scheduleChildren turns identified subtopics into queued child nodes,
// bounded by the per-level cap. Child IDs extend the parent's ID so the
// tree position is readable from the ID alone.
func (o *Orchestrator) scheduleChildren(parent *types.ResearchNode, refs []types.SubtopicRef, state *runState) {
	limit := o.cfg.MaxSubtopicsPerLevel
	if len(refs) < limit {
		limit = len(refs)
	}
	for i := 0; i < limit; i++ {
		child := &types.ResearchNode{
			TopicID: fmt.Sprintf("%s-%d", parent.TopicID, i),
			Topic:   refs[i].Title,
			Depth:   parent.Depth + 1,
			Status:  types.NodeQueued,
		}
		parent.Children = append(parent.Children, child)
		state.schedule(child)
	}
}

// finishNode updates run counters, fires hooks and detects depth
// completion.
func (o *Orchestrator) finishNode(node *types.ResearchNode, state *runState, counted bool) {
	state.mu.Lock()
	if counted && (node.Status == types.NodeCompleted || node.Status == types.NodePartial) {
		state.completedNodes++
	}
	state.perDepth[node.Depth]--
	// A depth is complete only when no shallower node is still in
	// flight, since those are the only source of new nodes here.
	depthDone := state.perDepth[node.Depth] == 0
	for d := 0; d < node.Depth; d++ {
		if state.perDepth[d] > 0 {
			depthDone = false
			break
		}
	}
	state.mu.Unlock()

	if o.OnStatusUpdate != nil {
		o.OnStatusUpdate(node)
	}
	if depthDone && o.OnDepthComplete != nil {
		o.OnDepthComplete(node.Depth)
	}
}

// schedule registers a node with the run counters and the work queue.
func (s *runState) schedule(node *types.ResearchNode) {
	s.mu.Lock()
	s.totalNodes++
	s.perDepth[node.Depth]++
	s.mu.Unlock()

	s.pending.Add(1)
	s.queue <- node
}

// runStatus derives the run-level status from the finished tree.
func runStatus(root *types.ResearchNode, total, completed int) types.NodeStatus {
	switch {
	case root.Status == types.NodeError:
		return types.NodeError
	case completed == total && root.Status == types.NodeCompleted:
		return types.NodeCompleted
	default:
		return types.NodePartial
	}
}
