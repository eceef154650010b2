package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/studypilot/researchflow/subtopics"
	"github.com/studypilot/researchflow/types"
)

// SynthesizeCall records a single Synthesize invocation.
type SynthesizeCall struct {
	Topic        string
	Aggregation  *types.Aggregation
	AgentResults []types.AgentResult
}

// Synthesizer is a scripted subtopics.Synthesizer. By default it
// returns a short summary plus topicsPerCall proposed subtopics for
// any input; scripts can pin the output per topic, inject errors, or
// supply a custom function.
type Synthesizer struct {
	mu sync.Mutex

	topicsPerCall int
	byTopic       map[string]*subtopics.Synthesis
	err           error
	fn            func(ctx context.Context, topic string) (*subtopics.Synthesis, error)

	calls []SynthesizeCall
}

// NewSynthesizer creates a scripted synthesizer proposing
// topicsPerCall subtopics per call.
func NewSynthesizer(topicsPerCall int) *Synthesizer {
	if topicsPerCall < 0 {
		topicsPerCall = 0
	}
	return &Synthesizer{topicsPerCall: topicsPerCall, byTopic: map[string]*subtopics.Synthesis{}}
}

// WithSynthesis pins the result returned for one topic.
func (s *Synthesizer) WithSynthesis(topic string, syn *subtopics.Synthesis) *Synthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTopic[topic] = syn
	return s
}

// WithError makes every Synthesize call fail with err.
func (s *Synthesizer) WithError(err error) *Synthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// WithFunc routes every Synthesize call to fn.
func (s *Synthesizer) WithFunc(fn func(ctx context.Context, topic string) (*subtopics.Synthesis, error)) *Synthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	return s
}

func (s *Synthesizer) Synthesize(ctx context.Context, topic string, agg *types.Aggregation, agentResults []types.AgentResult) (*subtopics.Synthesis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, SynthesizeCall{Topic: topic, Aggregation: agg, AgentResults: agentResults})
	pinned, ok := s.byTopic[topic]
	err := s.err
	fn := s.fn
	n := s.topicsPerCall
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, topic)
	}
	if err != nil {
		return nil, err
	}
	if ok {
		return pinned, nil
	}

	topics := make([]subtopics.ProposedTopic, n)
	for i := range topics {
		topics[i] = subtopics.ProposedTopic{
			Title:      fmt.Sprintf("%s aspect %d", topic, i+1),
			Level:      1,
			Confidence: 0.9 - 0.05*float64(i),
			KeyTerms:   []string{topic},
		}
	}
	return &subtopics.Synthesis{
		Summary:  fmt.Sprintf("Scripted summary of %s.", topic),
		KeyFacts: []string{fmt.Sprintf("Fact about %s.", topic)},
		Topics:   topics,
	}, nil
}

// Calls returns a copy of the recorded invocations.
func (s *Synthesizer) Calls() []SynthesizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SynthesizeCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of Synthesize invocations so far.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
