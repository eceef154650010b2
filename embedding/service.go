// Package embedding splits text into bounded token-sized chunks and
// produces vector embeddings, cached by content hash.
package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

// Backend is the external embedding collaborator. It is assumed to
// enforce its own per-call batch-size ceiling; the service additionally
// batches at MaxBatchSize.
type Backend interface {
	// EmbedBatch embeds texts in order. A failure here aborts the
	// enclosing Embed call; there is no silent placeholder vector.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	// Model names the embedding model, recorded in cache entries.
	Model() string
}

// ServiceConfig configures the embedding service.
type ServiceConfig struct {
	MaxBatchSize int            `json:"max_batch_size" yaml:"max_batch_size"`
	Chunking     ChunkingConfig `json:"chunking" yaml:"chunking"`
}

// DefaultServiceConfig returns the default service settings.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxBatchSize: 100,
		Chunking:     DefaultChunkingConfig(),
	}
}

// Service combines chunking, embedding and caching behind one handle.
// It is explicitly constructed and passed by reference; Close releases
// the cache.
type Service struct {
	cfg     ServiceConfig
	backend Backend
	cache   Cache
	chunker *Chunker
	logger  *zap.Logger
}

// NewService creates an embedding service. cache may be nil to disable
// caching entirely.
func NewService(cfg ServiceConfig, backend Backend, cache Cache, tokenizer Tokenizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBatchSize <= 0 || cfg.MaxBatchSize > 100 {
		cfg.MaxBatchSize = 100
	}
	return &Service{
		cfg:     cfg,
		backend: backend,
		cache:   cache,
		chunker: NewChunker(cfg.Chunking, tokenizer, logger),
		logger:  logger.With(zap.String("component", "embedding_service")),
	}
}

// Chunk splits text with the service's chunking configuration.
func (s *Service) Chunk(text string, meta ChunkMetadata) []Chunk {
	return s.chunker.Chunk(text, meta)
}

// Embed returns one vector per input text, in input order. Cached texts
// are served from the cache; only the uncached remainder is sent to the
// backend, batched at the configured ceiling, and the results are
// merged back into original order.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float64, len(texts))
	var uncachedIdx []int
	var uncachedTexts []string

	for i, text := range texts {
		if s.cache != nil {
			if entry, ok := s.cache.Get(ctx, CacheKey(text)); ok {
				out[i] = entry.Embedding
				continue
			}
		}
		uncachedIdx = append(uncachedIdx, i)
		uncachedTexts = append(uncachedTexts, text)
	}

	if len(uncachedTexts) > 0 {
		vectors, err := s.embedBatched(ctx, uncachedTexts)
		if err != nil {
			return nil, types.NewError(types.ErrEmbeddingBackend, "embedding backend failed").
				WithCause(err).WithRetryable(true)
		}
		now := time.Now()
		for k, vec := range vectors {
			out[uncachedIdx[k]] = vec
			if s.cache != nil {
				s.cache.Set(ctx, CacheKey(uncachedTexts[k]), &CacheEntry{
					Embedding: vec,
					Timestamp: now,
					Model:     s.backend.Model(),
				})
			}
		}
	}

	s.logger.Debug("embed completed",
		zap.Int("texts", len(texts)),
		zap.Int("cache_hits", len(texts)-len(uncachedTexts)),
		zap.Int("computed", len(uncachedTexts)),
	)
	return out, nil
}

// EmbedChunks embeds the metadata-prefixed text of each chunk.
func (s *Service) EmbedChunks(ctx context.Context, chunks []Chunk) ([][]float64, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.EmbeddingText()
	}
	return s.Embed(ctx, texts)
}

// embedBatched splits texts into backend-sized batches and concatenates
// the results in order.
func (s *Service) embedBatched(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += s.cfg.MaxBatchSize {
		end := start + s.cfg.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := s.backend.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// Close releases the cache.
func (s *Service) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}
