package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

// Response is the envelope for every JSON API response.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorInfo carries a structured error to the client.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	// Encoding failures after WriteHeader cannot be reported to the
	// client anymore.
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful enveloped response.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError writes an error response derived from err. Structured
// pipeline errors map to specific HTTP statuses; anything else becomes
// a 500.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var perr *types.Error
	if !errors.As(err, &perr) {
		perr = types.NewError(types.ErrInternal, err.Error())
	}
	status := mapErrorCodeToHTTPStatus(perr.Code)

	if logger != nil {
		logger.Error("API error",
			zap.String("code", string(perr.Code)),
			zap.String("message", perr.Message),
			zap.Int("status", status),
			zap.Bool("retryable", perr.Retryable),
			zap.Error(perr.Cause),
		)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(perr.Code),
			Message:   perr.Message,
			Retryable: perr.Retryable,
		},
		Timestamp: time.Now(),
	})
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrRunNotFound:
		return http.StatusNotFound
	case types.ErrRunExists:
		return http.StatusConflict
	case types.ErrRunCancelled:
		return http.StatusConflict
	case types.ErrAgentTimeout:
		return http.StatusGatewayTimeout
	case types.ErrAgentFailed, types.ErrEmbeddingBackend:
		return http.StatusBadGateway
	case types.ErrCache, types.ErrStreaming,
		types.ErrAggregation, types.ErrScoring,
		types.ErrExtraction, types.ErrSynthesis,
		types.ErrInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes a JSON request body into dst, rejecting
// unknown fields. On failure the error response is already written.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").WithCause(err)
		WriteError(w, apiErr, logger)
		return apiErr
	}

	return nil
}

// ResponseWriter wraps http.ResponseWriter to capture the status code
// for logging and metrics middleware.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w with a 200 default status.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer so streaming responses keep
// working through the middleware chain.
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack forwards to the underlying writer so the WebSocket upgrade can
// take over the connection.
func (rw *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	rw.Written = true
	return hj.Hijack()
}
