package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Render(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/density/mode", nil)

	err := NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
		[]ValidationError{{Field: "values", Message: "required"}})
	require.NoError(t, render.Render(w, r, err))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
	assert.Equal(t, "Request validation failed", body["message"])
	assert.Len(t, body["details"], 1)
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{ErrValidationFailed, http.StatusBadRequest, "VALIDATION_FAILED"},
		{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{ErrRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{ErrInternalServer, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestInvalidRequestWithError(t *testing.T) {
	got := InvalidRequestWithError(errors.New("unexpected EOF"))
	assert.Equal(t, http.StatusBadRequest, got.StatusCode)
	assert.Equal(t, "unexpected EOF", got.Details)
}

func TestFromAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
	}{
		{"validation", NewValidationError("x"), http.StatusBadRequest},
		{"config", NewConfigError("x", nil), http.StatusBadRequest},
		{"layout", NewLayoutError("x"), http.StatusBadRequest},
		{"parsing", NewParsingError("x", nil), http.StatusBadRequest},
		{"corrupt", NewCorruptInputError("c"), http.StatusUnprocessableEntity},
		{"not found", NewNotFoundError("x"), http.StatusNotFound},
		{"storage", NewStorageError("x", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAppError(tt.err)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, string(tt.err.Type), got.ErrorCode)
			assert.Equal(t, tt.err.Message, got.Message)
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, ErrRateLimitExceeded)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.ErrorCode)
}
