package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/api"
	"github.com/studypilot/researchflow/research"
	"github.com/studypilot/researchflow/types"
)

// ResearchHandler exposes the run lifecycle over HTTP.
type ResearchHandler struct {
	service *research.Service
	logger  *zap.Logger
}

// NewResearchHandler creates a research handler.
func NewResearchHandler(service *research.Service, logger *zap.Logger) *ResearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResearchHandler{
		service: service,
		logger:  logger.With(zap.String("component", "research_handler")),
	}
}

// HandleStart starts a research run.
//
// POST /api/v1/research
func (h *ResearchHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartResearchRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	runID, err := h.service.StartResearch(r.Context(), research.StartRequest{
		Topic:   req.Topic,
		UserID:  req.UserID,
		Context: req.Context,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	status := "running"
	if st, serr := h.service.GetResearchStatus(runID); serr == nil && st.Status == types.NodeQueued {
		status = "queued"
	}

	h.logger.Info("research run accepted",
		zap.String("run_id", runID),
		zap.String("topic", req.Topic),
		zap.String("status", status),
	)

	WriteJSON(w, http.StatusAccepted, Response{
		Success:   true,
		Data:      api.StartResearchResponse{RunID: runID, Status: status},
		Timestamp: time.Now(),
	})
}

// HandleCancel cancels a running or queued run.
//
// POST /api/v1/research/{id}/cancel
func (h *ResearchHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "missing run id"), h.logger)
		return
	}

	if err := h.service.CancelResearch(runID); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.CancelResearchResponse{RunID: runID, Cancelled: true})
}

// HandleStatus returns a snapshot of one run.
//
// GET /api/v1/research/{id}
func (h *ResearchHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "missing run id"), h.logger)
		return
	}

	st, err := h.service.GetResearchStatus(runID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, st)
}

// HandleHistory lists persisted runs, newest first.
//
// GET /api/v1/research?user_id=...&limit=...
func (h *ResearchHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, types.NewError(types.ErrInvalidRequest, "limit must be a positive integer"), h.logger)
			return
		}
		limit = n
	}

	records, err := h.service.GetResearchHistory(r.Context(), userID, limit)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, records)
}
