package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/studypilot/researchflow/agents"
	"github.com/studypilot/researchflow/aggregate"
	"github.com/studypilot/researchflow/internal/retry"
	"github.com/studypilot/researchflow/research"
	"github.com/studypilot/researchflow/scoring"
	"github.com/studypilot/researchflow/streaming"
	"github.com/studypilot/researchflow/types"
)

// fakeBackend either answers instantly or blocks until the context
// expires.
type fakeBackend struct {
	name  string
	block bool
}

func (b *fakeBackend) Search(ctx context.Context, query string, opts agents.SearchOptions) ([]types.SearchItem, error) {
	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []types.SearchItem{{
		Title:          fmt.Sprintf("%s result for %s", b.name, query),
		URL:            fmt.Sprintf("https://example.com/%s", b.name),
		Snippet:        "snippet",
		RelevanceScore: 0.9,
	}}, nil
}

func (b *fakeBackend) Name() string { return b.name }

// memoryHistory is an in-memory research.HistoryStore.
type memoryHistory struct {
	mu      sync.Mutex
	records []research.RunRecord
}

func (m *memoryHistory) SaveRun(ctx context.Context, rec research.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryHistory) ListRuns(ctx context.Context, userID string, limit int) ([]research.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []research.RunRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if userID == "" || m.records[i].UserID == userID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

type testEnv struct {
	service *research.Service
	streams *streaming.Manager
	history *memoryHistory
	handler http.Handler
}

type testEnvOptions struct {
	blockAgents  bool
	agentTimeout time.Duration
}

// newTestEnv wires a real service behind the router, with fake search
// backends and an in-memory history store.
func newTestEnv(t *testing.T, opts testEnvOptions) *testEnv {
	logger := zaptest.NewLogger(t)

	timeout := opts.agentTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}

	roster := make([]*agents.Agent, 0, 5)
	for _, n := range []types.AgentName{
		types.AgentGeneral,
		types.AgentAcademic,
		types.AgentVideo,
		types.AgentCommunity,
		types.AgentNews,
	} {
		cfg := agents.Config{
			Name:          n,
			Timeout:       timeout,
			MaxResults:    10,
			RatePerSecond: 0,
		}
		roster = append(roster, agents.New(cfg, &fakeBackend{name: string(n), block: opts.blockAgents}, nil))
	}

	coordCfg := research.DefaultCoordinatorConfig()
	coordCfg.Retry = &retry.Policy{
		MaxRetries:   1,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	coordinator := research.NewCoordinator(
		coordCfg,
		roster,
		aggregate.New(aggregate.DefaultConfig(), nil),
		scoring.New(scoring.DefaultConfig(), nil),
		nil,
		logger,
	)

	svcCfg := research.DefaultServiceConfig()
	svcCfg.Orchestrator.MaxDepth = 1
	svcCfg.Orchestrator.Workers = 2

	streams := streaming.NewManager(streaming.DefaultConfig(), logger)
	history := &memoryHistory{}
	service := research.NewService(svcCfg, coordinator, streams, history, logger)

	router := NewRouter(
		NewResearchHandler(service, logger),
		NewStreamHandler(service, streams, nil, logger),
		NewHealthHandler(logger),
		nil,
		nil,
		logger,
	)

	t.Cleanup(func() {
		service.Shutdown()
		_ = streams.Close()
	})

	return &testEnv{
		service: service,
		streams: streams,
		history: history,
		handler: router.Handler(),
	}
}
