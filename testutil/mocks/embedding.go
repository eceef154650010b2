package mocks

import (
	"context"
	"crypto/sha256"
	"sync"
)

// EmbeddingBackend is a scripted embedding.Backend. By default it
// returns a deterministic vector derived from each text's hash, so
// identical texts always embed identically. Batches are counted so
// cache tests can assert how many calls reached the backend.
type EmbeddingBackend struct {
	mu sync.Mutex

	model   string
	dims    int
	err     error
	batches [][]string
}

// NewEmbeddingBackend creates a backend reporting model with
// dims-dimensional vectors.
func NewEmbeddingBackend(model string, dims int) *EmbeddingBackend {
	if dims <= 0 {
		dims = 8
	}
	return &EmbeddingBackend{model: model, dims: dims}
}

// WithError makes every EmbedBatch call fail with err.
func (b *EmbeddingBackend) WithError(err error) *EmbeddingBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	return b
}

func (b *EmbeddingBackend) Model() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model
}

func (b *EmbeddingBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	batch := make([]string, len(texts))
	copy(batch, texts)
	b.batches = append(b.batches, batch)
	err := b.err
	dims := b.dims
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = deterministicVector(text, dims)
	}
	return out, nil
}

// Batches returns a copy of the recorded batch calls.
func (b *EmbeddingBackend) Batches() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]string, len(b.batches))
	for i, batch := range b.batches {
		out[i] = append([]string(nil), batch...)
	}
	return out
}

// TextCount returns the total number of texts embedded across all
// batches.
func (b *EmbeddingBackend) TextCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, batch := range b.batches {
		n += len(batch)
	}
	return n
}

func deterministicVector(text string, dims int) []float64 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float64, dims)
	for i := range vec {
		vec[i] = float64(sum[i%len(sum)])/255.0 - 0.5
	}
	return vec
}
