package embedding

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

// ChunkingStrategy selects how text is split.
type ChunkingStrategy string

const (
	ChunkingSentence      ChunkingStrategy = "sentence"
	ChunkingParagraph     ChunkingStrategy = "paragraph"
	ChunkingSemantic      ChunkingStrategy = "semantic"
	ChunkingSlidingWindow ChunkingStrategy = "sliding_window"
)

// ChunkingConfig bounds chunk sizes.
type ChunkingConfig struct {
	Strategy      ChunkingStrategy `json:"strategy" yaml:"strategy"`
	MaxTokens     int              `json:"max_tokens" yaml:"max_tokens"`
	OverlapTokens int              `json:"overlap_tokens" yaml:"overlap_tokens"`

	// Sliding-window parameters (word based).
	WindowWords  int `json:"window_words" yaml:"window_words"`
	OverlapWords int `json:"overlap_words" yaml:"overlap_words"`
}

// DefaultChunkingConfig returns the production defaults. Semantic is the
// default strategy because it best preserves meaning under a hard token
// cap.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		Strategy:      ChunkingSemantic,
		MaxTokens:     512,
		OverlapTokens: 50,
		WindowWords:   200,
		OverlapWords:  40,
	}
}

// ChunkMetadata places a chunk in the topic hierarchy. It is prefixed
// into the text actually sent for embedding, improving retrieval at the
// cost of a few extra tokens per chunk.
type ChunkMetadata struct {
	ChunkIndex    int             `json:"chunk_index"`
	TotalChunks   int             `json:"total_chunks"`
	TokenCount    int             `json:"token_count"`
	ContextType   string          `json:"context_type,omitempty"`
	SourceID      string          `json:"source_id,omitempty"`
	ParentTopic   string          `json:"parent_topic,omitempty"`
	Subtopic      string          `json:"subtopic,omitempty"`
	Difficulty    types.UserLevel `json:"difficulty,omitempty"`
	HierarchyPath []string        `json:"hierarchy_path,omitempty"`
}

// Chunk is one bounded-size slice of text prepared for embedding,
// immutable once produced.
type Chunk struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// EmbeddingText returns the text actually submitted for embedding: the
// hierarchy metadata prefix followed by the chunk content.
func (c Chunk) EmbeddingText() string {
	var parts []string
	if c.Metadata.ParentTopic != "" {
		parts = append(parts, "Topic: "+c.Metadata.ParentTopic)
	}
	if c.Metadata.Subtopic != "" {
		parts = append(parts, "Subtopic: "+c.Metadata.Subtopic)
	}
	if c.Metadata.Difficulty != "" {
		parts = append(parts, "Difficulty: "+string(c.Metadata.Difficulty))
	}
	if len(c.Metadata.HierarchyPath) > 0 {
		parts = append(parts, "Path: "+strings.Join(c.Metadata.HierarchyPath, " > "))
	}
	if len(parts) == 0 {
		return c.Content
	}
	return strings.Join(parts, " | ") + "\n" + c.Content
}

// Chunker splits text under a token budget.
type Chunker struct {
	cfg       ChunkingConfig
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewChunker creates a chunker. A nil tokenizer falls back to the word
//-count heuristic.
func NewChunker(cfg ChunkingConfig, tokenizer Tokenizer, logger *zap.Logger) *Chunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenizer == nil {
		tokenizer = HeuristicTokenizer{}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}
	if cfg.WindowWords <= 0 {
		cfg.WindowWords = 200
	}
	if cfg.OverlapWords < 0 || cfg.OverlapWords >= cfg.WindowWords {
		cfg.OverlapWords = cfg.WindowWords / 5
	}
	return &Chunker{
		cfg:       cfg,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "chunker")),
	}
}

// Chunk splits text according to the configured strategy and stamps the
// shared metadata onto every produced chunk.
func (c *Chunker) Chunk(text string, meta ChunkMetadata) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var contents []string
	switch c.cfg.Strategy {
	case ChunkingSentence:
		contents = c.packUnits(splitSentences(text))
	case ChunkingParagraph:
		contents = c.packUnits(splitParagraphs(text))
	case ChunkingSlidingWindow:
		contents = c.slidingWindow(text)
	default: // ChunkingSemantic
		contents = c.semantic(text)
	}

	chunks := make([]Chunk, len(contents))
	for i, content := range contents {
		m := meta
		m.ChunkIndex = i
		m.TotalChunks = len(contents)
		m.TokenCount = c.tokenizer.CountTokens(content)
		chunks[i] = Chunk{
			ID:       fmt.Sprintf("%s-%d", firstNonEmpty(meta.SourceID, "chunk"), i),
			Content:  content,
			Metadata: m,
		}
	}
	return chunks
}

// packUnits greedily packs units (sentences or paragraphs) into chunks
// under the token budget. A single oversized unit becomes its own chunk
// rather than being split mid-unit.
func (c *Chunker) packUnits(units []string) []string {
	var out []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = nil
			currentTokens = 0
		}
	}

	for _, u := range units {
		t := c.tokenizer.CountTokens(u)
		if currentTokens+t > c.cfg.MaxTokens && currentTokens > 0 {
			flush()
		}
		current = append(current, u)
		currentTokens += t
	}
	flush()
	return out
}

// semantic packs sentences under the token budget and, when the budget
// is exceeded mid-flow, backtracks to the nearest sentence boundary and
// restarts the next chunk with a token overlap carried from the tail of
// the previous one.
func (c *Chunker) semantic(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var out []string
	var current []string
	currentTokens := 0

	for i := 0; i < len(sentences); i++ {
		s := sentences[i]
		t := c.tokenizer.CountTokens(s)

		if currentTokens+t > c.cfg.MaxTokens && currentTokens > 0 {
			out = append(out, strings.Join(current, " "))

			// Carry overlap: walk back whole sentences until the overlap
			// token budget is covered.
			var overlap []string
			overlapTokens := 0
			for j := len(current) - 1; j >= 0 && overlapTokens < c.cfg.OverlapTokens; j-- {
				overlap = append([]string{current[j]}, overlap...)
				overlapTokens += c.tokenizer.CountTokens(current[j])
			}
			current = overlap
			currentTokens = overlapTokens
		}

		current = append(current, s)
		currentTokens += t
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// slidingWindow emits fixed word-count windows with word overlap.
func (c *Chunker) slidingWindow(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.cfg.WindowWords - c.cfg.OverlapWords

	var out []string
	for start := 0; start < len(words); start += step {
		end := start + c.cfg.WindowWords
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

// splitSentences splits on sentence-terminating punctuation followed by
// whitespace. Abbreviation handling is deliberately not attempted; a
// few extra boundaries cost less than a mis-merged chunk.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		b.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				if s := strings.TrimSpace(b.String()); s != "" {
					out = append(out, s)
				}
				b.Reset()
			}
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
