// Package mocks holds scripted implementations of the module's
// external collaborator interfaces for use in tests.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/studypilot/researchflow/agents"
	"github.com/studypilot/researchflow/types"
)

// SearchCall records a single Search invocation.
type SearchCall struct {
	Query string
	Opts  agents.SearchOptions
}

// SearchBackend is a scripted agents.Backend. The zero value returns a
// small set of synthetic items for any query; Builder methods adjust
// items, errors, and timing. All methods are safe for concurrent use.
type SearchBackend struct {
	mu sync.Mutex

	name      string
	items     []types.SearchItem
	err       error
	delay     time.Duration
	failAfter int
	block     bool

	calls []SearchCall
}

// NewSearchBackend creates a scripted backend named name.
func NewSearchBackend(name string) *SearchBackend {
	return &SearchBackend{name: name}
}

// WithItems fixes the items returned by every Search call.
func (b *SearchBackend) WithItems(items ...types.SearchItem) *SearchBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = items
	return b
}

// WithError makes every Search call fail with err.
func (b *SearchBackend) WithError(err error) *SearchBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	return b
}

// WithDelay makes Search sleep before responding, honoring ctx.
func (b *SearchBackend) WithDelay(d time.Duration) *SearchBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
	return b
}

// FailAfter makes Search succeed n times and then fail with err.
func (b *SearchBackend) FailAfter(n int, err error) *SearchBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAfter = n
	b.err = err
	return b
}

// Blocking makes Search block until ctx is done, for timeout and
// cancellation tests.
func (b *SearchBackend) Blocking() *SearchBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.block = true
	return b
}

func (b *SearchBackend) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

func (b *SearchBackend) Search(ctx context.Context, query string, opts agents.SearchOptions) ([]types.SearchItem, error) {
	b.mu.Lock()
	b.calls = append(b.calls, SearchCall{Query: query, Opts: opts})
	n := len(b.calls)
	items, err := b.items, b.err
	delay, block := b.delay, b.block
	failAfter, name := b.failAfter, b.name
	b.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil && (failAfter == 0 || n > failAfter) {
		return nil, err
	}
	if items == nil {
		items = defaultItems(name, query)
	}
	return items, nil
}

// Calls returns a copy of the recorded invocations.
func (b *SearchBackend) Calls() []SearchCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SearchCall, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallCount returns the number of Search invocations so far.
func (b *SearchBackend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Reset clears the recorded calls.
func (b *SearchBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func defaultItems(name, query string) []types.SearchItem {
	items := make([]types.SearchItem, 3)
	for i := range items {
		items[i] = types.SearchItem{
			Title:          fmt.Sprintf("%s result %d for %s", name, i+1, query),
			URL:            fmt.Sprintf("https://example.com/%s/%d", name, i+1),
			Snippet:        fmt.Sprintf("Scripted snippet %d about %s.", i+1, query),
			Source:         name,
			PublishedAt:    time.Now().Add(-time.Duration(i+1) * 24 * time.Hour).Format(time.RFC3339),
			RelevanceScore: 0.9 - 0.1*float64(i),
		}
	}
	return items
}
