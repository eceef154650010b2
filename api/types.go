package api

import (
	"github.com/studypilot/researchflow/types"
)

// StartResearchRequest starts a recursive research run.
type StartResearchRequest struct {
	// Topic is the root research topic.
	Topic string `json:"topic"`
	// UserID attributes the run for history queries.
	UserID string `json:"user_id,omitempty"`
	// Context tunes agent behaviour for the whole run.
	Context *types.ResearchContext `json:"context,omitempty"`
}

// StartResearchResponse acknowledges an accepted run.
type StartResearchResponse struct {
	RunID string `json:"run_id"`
	// Status is "running" when the run was admitted immediately and
	// "queued" when it is waiting for a concurrency slot.
	Status string `json:"status"`
}

// CancelResearchResponse acknowledges a cancellation request.
type CancelResearchResponse struct {
	RunID     string `json:"run_id"`
	Cancelled bool   `json:"cancelled"`
}
