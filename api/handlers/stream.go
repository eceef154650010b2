package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studypilot/researchflow/internal/metrics"
	"github.com/studypilot/researchflow/research"
	"github.com/studypilot/researchflow/streaming"
	"github.com/studypilot/researchflow/types"
)

// StreamHandler attaches live clients to a run's progress stream.
type StreamHandler struct {
	service *research.Service
	streams *streaming.Manager
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewStreamHandler creates a stream handler. The metrics collector is
// optional.
func NewStreamHandler(service *research.Service, streams *streaming.Manager, collector *metrics.Collector, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		service: service,
		streams: streams,
		metrics: collector,
		logger:  logger.With(zap.String("component", "stream_handler")),
	}
}

// HandleSSE streams run updates as Server-Sent Events until the client
// disconnects.
//
// GET /api/v1/research/{id}/stream
func (h *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	sink, err := streaming.NewSSESink(w)
	if err != nil {
		WriteError(w, types.NewError(types.ErrStreaming, "response writer does not support streaming").WithCause(err), h.logger)
		return
	}

	h.attach(r.Context(), runID, sink)
}

// HandleWebSocket streams run updates over a WebSocket connection.
//
// GET /api/v1/research/{id}/ws
func (h *StreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return
	}

	// The stream is write-only; CloseRead surfaces the client going
	// away, which a hijacked request context never does.
	ctx := conn.CloseRead(r.Context())
	h.attach(ctx, runID, streaming.NewWebSocketSink(conn, h.logger))
}

func (h *StreamHandler) lookupRun(w http.ResponseWriter, r *http.Request) (string, bool) {
	runID := r.PathValue("id")
	if runID == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "missing run id"), h.logger)
		return "", false
	}
	if _, err := h.service.GetResearchStatus(runID); err != nil {
		WriteError(w, err, h.logger)
		return "", false
	}
	return runID, true
}

// attach registers the sink and blocks until the client goes away. The
// manager owns the sink from here on and closes it on removal.
func (h *StreamHandler) attach(ctx context.Context, runID string, sink streaming.Sink) {
	connID := uuid.NewString()
	h.streams.AddConnection(runID, connID, sink)
	if h.metrics != nil {
		h.metrics.StreamConnectionOpened()
	}

	h.logger.Info("stream client attached",
		zap.String("run_id", runID),
		zap.String("conn_id", connID),
	)

	<-ctx.Done()

	h.streams.RemoveConnection(connID)
	if h.metrics != nil {
		h.metrics.StreamConnectionClosed()
	}

	h.logger.Info("stream client detached",
		zap.String("run_id", runID),
		zap.String("conn_id", connID),
	)
}
