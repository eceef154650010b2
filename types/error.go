package types

import "fmt"

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Pipeline error codes. Failures are contained at the smallest meaningful
// scope: an agent error never aborts its node, a node error never aborts
// sibling branches.
const (
	ErrAgentTimeout     ErrorCode = "AGENT_TIMEOUT"
	ErrAgentFailed      ErrorCode = "AGENT_ERROR"
	ErrAggregation      ErrorCode = "AGGREGATION_ERROR"
	ErrScoring          ErrorCode = "SCORING_ERROR"
	ErrExtraction       ErrorCode = "EXTRACTION_ERROR"
	ErrSynthesis        ErrorCode = "SYNTHESIS_ERROR"
	ErrCache            ErrorCode = "CACHE_ERROR"
	ErrEmbeddingBackend ErrorCode = "EMBEDDING_BACKEND_ERROR"
	ErrStreaming        ErrorCode = "STREAMING_ERROR"
	ErrRunCancelled     ErrorCode = "RUN_CANCELLED"
	ErrRunNotFound      ErrorCode = "RUN_NOT_FOUND"
	ErrRunExists        ErrorCode = "RUN_EXISTS"
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrInternal         ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Agent     AgentName `json:"agent,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithAgent records the agent the error originated from.
func (e *Error) WithAgent(agent AgentName) *Error {
	e.Agent = agent
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
