package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

// WebSocketSink adapts an established WebSocket connection to the Sink
// interface. Writes are serialized with a mutex because the WebSocket
// protocol does not allow concurrent writers.
type WebSocketSink struct {
	conn   *websocket.Conn
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewWebSocketSink wraps an accepted connection.
func NewWebSocketSink(conn *websocket.Conn, logger *zap.Logger) *WebSocketSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketSink{
		conn:   conn,
		logger: logger.With(zap.String("component", "ws_sink")),
	}
}

// Send serializes the update as a JSON text frame.
func (w *WebSocketSink) Send(ctx context.Context, update types.StreamingResearchUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("streaming: marshal update: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("streaming: sink closed")
	}
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("streaming: websocket write: %w", err)
	}
	return nil
}

// Close performs a normal-closure handshake.
func (w *WebSocketSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.conn.Close(websocket.StatusNormalClosure, "stream closed")
}
