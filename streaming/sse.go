package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/studypilot/researchflow/types"
)

// SSESink writes updates as server-sent events over an HTTP response.
// Each frame is one line-delimited JSON object in a data field, flushed
// immediately so clients see updates as they happen.
type SSESink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSESink prepares a response writer for event streaming. It returns
// an error when the writer does not support flushing.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming: response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &SSESink{w: w, flusher: flusher}, nil
}

// Send writes one event frame.
func (s *SSESink) Send(ctx context.Context, update types.StreamingResearchUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("streaming: marshal update: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("streaming: sink closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", update.Type, data); err != nil {
		return fmt.Errorf("streaming: write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Close marks the sink closed. The underlying response body is owned by
// the HTTP server and is not touched here.
func (s *SSESink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
