package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError_StructuredError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := types.NewError(types.ErrRunNotFound, "unknown run abc").WithRetryable(false)
	WriteError(rec, err, zap.NewNop())

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RUN_NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "unknown run abc", resp.Error.Message)
}

func TestWriteError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("boom"), zap.NewNop())

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrRunNotFound, http.StatusNotFound},
		{types.ErrRunExists, http.StatusConflict},
		{types.ErrRunCancelled, http.StatusConflict},
		{types.ErrAgentTimeout, http.StatusGatewayTimeout},
		{types.ErrAgentFailed, http.StatusBadGateway},
		{types.ErrEmbeddingBackend, http.StatusBadGateway},
		{types.ErrStreaming, http.StatusInternalServerError},
		{types.ErrInternal, http.StatusInternalServerError},
		{types.ErrorCode("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Topic string `json:"topic"`
	}

	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"topic":"x"}`))
		rec := httptest.NewRecorder()

		var p payload
		require.NoError(t, DecodeJSONBody(rec, req, &p, zap.NewNop()))
		assert.Equal(t, "x", p.Topic)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"topic":"x","extra":1}`))
		rec := httptest.NewRecorder()

		var p payload
		err := DecodeJSONBody(rec, req, &p, zap.NewNop())
		require.Error(t, err)
		assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // second call must be ignored
	_, err := rw.Write([]byte("short and stout"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}

func TestResponseWriter_DefaultsTo200OnWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	_, err := rw.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
}
