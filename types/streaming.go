package types

import "time"

// UpdateType is the kind of a streaming frame.
type UpdateType string

const (
	UpdateStatus    UpdateType = "status"
	UpdateProgress  UpdateType = "progress"
	UpdateContent   UpdateType = "content"
	UpdateError     UpdateType = "error"
	UpdateComplete  UpdateType = "complete"
	UpdateHeartbeat UpdateType = "heartbeat"
)

// StreamingResearchUpdate is one wire frame. It is ephemeral and never
// persisted; exactly one of the payload fields is set, matching Type.
type StreamingResearchUpdate struct {
	Type      UpdateType       `json:"type"`
	TopicID   string           `json:"topic_id"`
	Timestamp time.Time        `json:"timestamp"`
	Status    *ResearchStatus  `json:"status,omitempty"`
	Progress  *ProgressPayload `json:"progress,omitempty"`
	Content   *ContentPayload  `json:"content,omitempty"`
	Error     *ErrorPayload    `json:"error,omitempty"`
	Complete  *CompletePayload `json:"complete,omitempty"`
}

// ProgressPayload reports coordinator progress for one node.
type ProgressPayload struct {
	Percent         int    `json:"percent"`
	CompletedAgents int    `json:"completed_agents"`
	TotalAgents     int    `json:"total_agents"`
	Message         string `json:"message,omitempty"`
}

// ContentPayload delivers a completed node's aggregated content.
type ContentPayload struct {
	Depth       int           `json:"depth"`
	ResultCount int           `json:"result_count"`
	Subtopics   []SubtopicRef `json:"subtopics,omitempty"`
}

// ErrorPayload is a user-visible failure frame. Callers should offer a
// retry only when Recoverable is true.
type ErrorPayload struct {
	Message     string    `json:"message"`
	Code        ErrorCode `json:"code,omitempty"`
	Recoverable bool      `json:"recoverable"`
}

// CompletePayload is the terminal frame of a run.
type CompletePayload struct {
	TotalNodes     int        `json:"total_nodes"`
	CompletedNodes int        `json:"completed_nodes"`
	Status         NodeStatus `json:"status"`
	DurationMS     int64      `json:"duration_ms"`
}

// NewStatusUpdate builds a status frame.
func NewStatusUpdate(topicID string, st *ResearchStatus) StreamingResearchUpdate {
	return StreamingResearchUpdate{Type: UpdateStatus, TopicID: topicID, Timestamp: time.Now(), Status: st}
}

// NewProgressUpdate builds a progress frame.
func NewProgressUpdate(topicID string, p *ProgressPayload) StreamingResearchUpdate {
	return StreamingResearchUpdate{Type: UpdateProgress, TopicID: topicID, Timestamp: time.Now(), Progress: p}
}

// NewContentUpdate builds a content frame.
func NewContentUpdate(topicID string, c *ContentPayload) StreamingResearchUpdate {
	return StreamingResearchUpdate{Type: UpdateContent, TopicID: topicID, Timestamp: time.Now(), Content: c}
}

// NewErrorUpdate builds an error frame.
func NewErrorUpdate(topicID string, e *ErrorPayload) StreamingResearchUpdate {
	return StreamingResearchUpdate{Type: UpdateError, TopicID: topicID, Timestamp: time.Now(), Error: e}
}

// NewCompleteUpdate builds the terminal frame of a run.
func NewCompleteUpdate(topicID string, c *CompletePayload) StreamingResearchUpdate {
	return StreamingResearchUpdate{Type: UpdateComplete, TopicID: topicID, Timestamp: time.Now(), Complete: c}
}

// NewHeartbeat builds a keep-alive frame.
func NewHeartbeat(topicID string) StreamingResearchUpdate {
	return StreamingResearchUpdate{Type: UpdateHeartbeat, TopicID: topicID, Timestamp: time.Now()}
}
