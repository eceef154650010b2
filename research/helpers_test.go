package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/studypilot/researchflow/agents"
	"github.com/studypilot/researchflow/aggregate"
	"github.com/studypilot/researchflow/internal/retry"
	"github.com/studypilot/researchflow/scoring"
	"github.com/studypilot/researchflow/subtopics"
	"github.com/studypilot/researchflow/types"
)

// scriptedBackend returns a fixed payload, fails outright, or waits out
// the caller's deadline, depending on how it is scripted.
type scriptedBackend struct {
	name  string
	items []types.SearchItem
	err   error

	// waitForDeadline makes every call block until the context expires.
	waitForDeadline bool

	// gate, when set, blocks calls until the channel is closed.
	gate chan struct{}

	mu      sync.Mutex
	calls   int
	queries []string
}

func (b *scriptedBackend) Search(ctx context.Context, query string, opts agents.SearchOptions) ([]types.SearchItem, error) {
	b.mu.Lock()
	b.calls++
	b.queries = append(b.queries, query)
	b.mu.Unlock()

	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.waitForDeadline {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.items, nil
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *scriptedBackend) seenQueries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.queries))
	copy(out, b.queries)
	return out
}

// stubSynthesizer returns a canned topic list, or an error.
type stubSynthesizer struct {
	topics []subtopics.ProposedTopic
	err    error

	mu    sync.Mutex
	calls int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, topic string, agg *types.Aggregation, agentResults []types.AgentResult) (*subtopics.Synthesis, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &subtopics.Synthesis{
		Summary: "synthesis of " + topic,
		Topics:  s.topics,
	}, nil
}

func (s *stubSynthesizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// testRoster builds the five-agent roster with test-friendly timeouts,
// no rate limiting and one scripted backend per agent.
func testRoster(backends map[types.AgentName]*scriptedBackend) []*agents.Agent {
	names := []types.AgentName{
		types.AgentGeneral,
		types.AgentAcademic,
		types.AgentVideo,
		types.AgentCommunity,
		types.AgentNews,
	}
	roster := make([]*agents.Agent, 0, len(names))
	for _, n := range names {
		be := backends[n]
		if be == nil {
			be = &scriptedBackend{name: string(n)}
		}
		cfg := agents.Config{
			Name:          n,
			Timeout:       50 * time.Millisecond,
			MaxResults:    10,
			RatePerSecond: 0,
		}
		roster = append(roster, agents.New(cfg, be, nil))
	}
	return roster
}

// fastRetryPolicy keeps the default retry count but drops the delays so
// tests finish quickly.
func fastRetryPolicy() *retry.Policy {
	return &retry.Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newTestCoordinator(roster []*agents.Agent, synth subtopics.Synthesizer) *Coordinator {
	cfg := DefaultCoordinatorConfig()
	cfg.Retry = fastRetryPolicy()
	var extractor *subtopics.Extractor
	if synth != nil {
		extractor = subtopics.New(subtopics.DefaultConfig(), synth, nil)
	}
	return NewCoordinator(
		cfg,
		roster,
		aggregate.New(aggregate.DefaultConfig(), nil),
		scoring.New(scoring.DefaultConfig(), nil),
		extractor,
		nil,
	)
}

// okBackends returns one distinct successful item per agent.
func okBackends() map[types.AgentName]*scriptedBackend {
	out := map[types.AgentName]*scriptedBackend{}
	for i, n := range []types.AgentName{
		types.AgentGeneral,
		types.AgentAcademic,
		types.AgentVideo,
		types.AgentCommunity,
		types.AgentNews,
	} {
		out[n] = &scriptedBackend{
			name: string(n),
			items: []types.SearchItem{{
				Title:          fmt.Sprintf("Result %d from %s", i, n),
				URL:            fmt.Sprintf("https://example.com/%s/%d", n, i),
				Snippet:        "snippet",
				RelevanceScore: 0.9,
			}},
		}
	}
	return out
}

// collectingObserver gathers frames thread-safely.
type collectingObserver struct {
	mu     sync.Mutex
	frames []types.StreamingResearchUpdate
}

func (c *collectingObserver) observe(u types.StreamingResearchUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, u)
}

func (c *collectingObserver) byType(t types.UpdateType) []types.StreamingResearchUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.StreamingResearchUpdate
	for _, f := range c.frames {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}
