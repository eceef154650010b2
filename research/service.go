package research

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studypilot/researchflow/streaming"
	"github.com/studypilot/researchflow/types"
)

// RunRecord is the persisted summary of one finished run.
type RunRecord struct {
	RunID          string           `json:"run_id"`
	UserID         string           `json:"user_id,omitempty"`
	Topic          string           `json:"topic"`
	Status         types.NodeStatus `json:"status"`
	TotalNodes     int              `json:"total_nodes"`
	CompletedNodes int              `json:"completed_nodes"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
}

// HistoryStore persists finished runs. The pipeline never reads its own
// history; the store exists for the query surface only.
type HistoryStore interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, userID string, limit int) ([]RunRecord, error)
}

// Recorder receives run lifecycle metrics. The *metrics.Collector
// satisfies it; a nil recorder disables recording.
type Recorder interface {
	RecordRun(status string, duration time.Duration)
	RecordNode(status string)
}

// ServiceConfig configures run admission.
type ServiceConfig struct {
	// MaxConcurrentRuns caps simultaneously executing runs; further
	// starts wait in FIFO order.
	MaxConcurrentRuns int `json:"max_concurrent_runs" yaml:"max_concurrent_runs"`

	Coordinator  CoordinatorConfig  `json:"coordinator" yaml:"coordinator"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator"`
}

// DefaultServiceConfig returns the default service settings.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxConcurrentRuns: 3,
		Coordinator:       DefaultCoordinatorConfig(),
		Orchestrator:      DefaultOrchestratorConfig(),
	}
}

// StartRequest describes one research run to launch.
type StartRequest struct {
	Topic   string                 `json:"topic"`
	UserID  string                 `json:"user_id,omitempty"`
	Context *types.ResearchContext `json:"context,omitempty"`
}

// RunStatus is a point-in-time snapshot of one run.
type RunStatus struct {
	RunID          string           `json:"run_id"`
	Topic          string           `json:"topic"`
	Status         types.NodeStatus `json:"status"`
	TotalNodes     int              `json:"total_nodes"`
	CompletedNodes int              `json:"completed_nodes"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at,omitempty"`
	Error          string           `json:"error,omitempty"`
}

type runHandle struct {
	id     string
	topic  string
	userID string
	rctx   *types.ResearchContext

	mu             sync.Mutex
	status         types.NodeStatus
	totalNodes     int
	completedNodes int
	startedAt      time.Time
	completedAt    time.Time
	err            error
	cancel         context.CancelFunc
	queued         bool // still waiting for an execution slot
	cancelled      bool // cancel requested, possibly before execute installed cancel
}

// Service owns run lifecycles: admission under the global concurrency
// cap, cooperative cancellation, status queries and history.
type Service struct {
	cfg         ServiceConfig
	coordinator *Coordinator
	streams     *streaming.Manager
	history     HistoryStore
	recorder    Recorder
	logger      *zap.Logger

	mu      sync.Mutex
	runs    map[string]*runHandle
	active  int
	waiting []*runHandle
}

// NewService assembles the run manager. The streaming manager and
// history store are both optional.
func NewService(cfg ServiceConfig, coordinator *Coordinator, streams *streaming.Manager, history HistoryStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 3
	}
	return &Service{
		cfg:         cfg,
		coordinator: coordinator,
		streams:     streams,
		history:     history,
		logger:      logger.With(zap.String("component", "research_service")),
		runs:        make(map[string]*runHandle),
	}
}

// SetRecorder installs a metrics recorder. Call before StartResearch.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// StartResearch registers a run and returns its ID immediately. The run
// executes in the background, queuing when the concurrency cap is hit.
func (s *Service) StartResearch(ctx context.Context, req StartRequest) (string, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return "", types.NewError(types.ErrInvalidRequest, "topic must not be empty")
	}

	handle := &runHandle{
		id:     uuid.NewString(),
		topic:  strings.TrimSpace(req.Topic),
		userID: req.UserID,
		rctx:   req.Context,
		status: types.NodeQueued,
		queued: true,
	}

	s.mu.Lock()
	s.runs[handle.id] = handle
	if s.active < s.cfg.MaxConcurrentRuns {
		s.active++
		handle.queued = false
		s.mu.Unlock()
		go s.execute(handle)
	} else {
		s.waiting = append(s.waiting, handle)
		s.mu.Unlock()
		s.logger.Info("run queued, concurrency cap reached",
			zap.String("run_id", handle.id),
			zap.Int("cap", s.cfg.MaxConcurrentRuns),
		)
	}
	return handle.id, nil
}

// execute runs one research pass to completion and then admits the next
// queued run.
func (s *Service) execute(handle *runHandle) {
	runCtx, cancel := context.WithCancel(context.Background())

	handle.mu.Lock()
	handle.cancel = cancel
	handle.status = types.NodeResearching
	handle.startedAt = time.Now()
	// A cancel may have arrived before this goroutine ran; honor it now
	// or it would be lost.
	cancelledEarly := handle.cancelled
	handle.mu.Unlock()
	if cancelledEarly {
		cancel()
	}

	var observer Observer
	if s.streams != nil {
		runID := handle.id
		observer = func(u types.StreamingResearchUpdate) {
			s.streams.Broadcast(runID, u)
		}
	}

	orch := NewOrchestrator(s.cfg.Orchestrator, s.coordinator, s.logger)
	orch.OnStatusUpdate = func(node *types.ResearchNode) {
		handle.mu.Lock()
		if node.Status == types.NodeCompleted || node.Status == types.NodePartial {
			handle.completedNodes++
		}
		handle.totalNodes++
		handle.mu.Unlock()

		if s.recorder != nil {
			switch node.Status {
			case types.NodeCompleted, types.NodePartial, types.NodeError:
				s.recorder.RecordNode(string(node.Status))
			}
		}
	}

	result, err := orch.Run(runCtx, handle.id, handle.topic, handle.rctx, observer)
	cancel()

	// A cancelled run must say so on the stream; the error frames agents
	// emit while dying with the context carry the wrong code.
	if err != nil && types.GetErrorCode(err) == types.ErrRunCancelled && observer != nil {
		observer(types.NewErrorUpdate(handle.id, &types.ErrorPayload{
			Message:     "research run cancelled",
			Code:        types.ErrRunCancelled,
			Recoverable: false,
		}))
	}

	handle.mu.Lock()
	handle.completedAt = time.Now()
	if result != nil {
		handle.totalNodes = result.TotalNodes
		handle.completedNodes = result.CompletedNodes
		handle.status = result.Status
	}
	if err != nil {
		handle.err = err
		handle.status = types.NodeError
	}
	status := handle.status
	duration := handle.completedAt.Sub(handle.startedAt)
	handle.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordRun(string(status), duration)
	}

	s.persist(handle, result)
	s.admitNext()
}

// persist records the finished run when a history store is configured.
func (s *Service) persist(handle *runHandle, result *types.RecursiveResearchResult) {
	if s.history == nil || result == nil {
		return
	}
	handle.mu.Lock()
	rec := RunRecord{
		RunID:          handle.id,
		UserID:         handle.userID,
		Topic:          handle.topic,
		Status:         handle.status,
		TotalNodes:     handle.totalNodes,
		CompletedNodes: handle.completedNodes,
		StartedAt:      handle.startedAt,
		CompletedAt:    handle.completedAt,
	}
	handle.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.SaveRun(ctx, rec); err != nil {
		s.logger.Warn("failed to persist run record",
			zap.String("run_id", handle.id),
			zap.Error(err),
		)
	}
}

// admitNext frees one execution slot and launches the oldest queued run.
func (s *Service) admitNext() {
	s.mu.Lock()
	s.active--
	var next *runHandle
	if len(s.waiting) > 0 {
		next = s.waiting[0]
		s.waiting = s.waiting[1:]
		next.queued = false
		s.active++
	}
	s.mu.Unlock()

	if next != nil {
		go s.execute(next)
	}
}

// CancelResearch cancels a run cooperatively. Queued runs are removed
// from the admission queue without ever starting; running ones get
// their context cancelled and finish with whatever they have.
func (s *Service) CancelResearch(runID string) error {
	s.mu.Lock()
	handle, ok := s.runs[runID]
	if !ok {
		s.mu.Unlock()
		return types.NewError(types.ErrRunNotFound, "unknown run "+runID)
	}
	if handle.queued {
		for i, w := range s.waiting {
			if w.id == runID {
				s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
				break
			}
		}
		handle.queued = false
		s.mu.Unlock()

		handle.mu.Lock()
		handle.status = types.NodeError
		handle.err = types.NewError(types.ErrRunCancelled, "run cancelled before start")
		handle.completedAt = time.Now()
		handle.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	handle.mu.Lock()
	handle.cancelled = true
	cancel := handle.cancel
	handle.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.logger.Info("run cancellation requested", zap.String("run_id", runID))
	return nil
}

// GetResearchStatus returns a snapshot of one run.
func (s *Service) GetResearchStatus(runID string) (*RunStatus, error) {
	s.mu.Lock()
	handle, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return nil, types.NewError(types.ErrRunNotFound, "unknown run "+runID)
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()
	st := &RunStatus{
		RunID:          handle.id,
		Topic:          handle.topic,
		Status:         handle.status,
		TotalNodes:     handle.totalNodes,
		CompletedNodes: handle.completedNodes,
		StartedAt:      handle.startedAt,
		CompletedAt:    handle.completedAt,
	}
	if handle.err != nil {
		st.Error = handle.err.Error()
	}
	return st, nil
}

// GetResearchHistory lists persisted runs for a user, newest first. An
// unconfigured history store yields an empty list.
func (s *Service) GetResearchHistory(ctx context.Context, userID string, limit int) ([]RunRecord, error) {
	if s.history == nil {
		return []RunRecord{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return s.history.ListRuns(ctx, userID, limit)
}

// Shutdown cancels every running run. Queued runs are dropped.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.waiting = nil
	handles := make([]*runHandle, 0, len(s.runs))
	for _, h := range s.runs {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.mu.Lock()
		cancel := h.cancel
		h.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
}
