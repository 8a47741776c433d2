package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affynorm/internal/infrastructure"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{
			name:       "validation",
			err:        NewValidationError("chipset is empty"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantCode:   string(ErrTypeValidation),
		},
		{
			name:       "wrapped layout",
			err:        fmt.Errorf("summarize step failed: %w", NewLayoutError("probe count mismatch")),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeLayout,
			wantCode:   string(ErrTypeLayout),
		},
		{
			name:       "corrupt input",
			err:        NewCorruptInputError("chip_2"),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeCorruptInput,
			wantCode:   string(ErrTypeCorruptInput),
		},
		{
			name:       "not found",
			err:        NewNotFoundError("reference chip X"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
			wantCode:   string(ErrTypeNotFound),
		},
		{
			name:       "api not found",
			err:        ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
			wantCode:   string(ErrTypeNotFound),
		},
		{
			name:       "api error",
			err:        ErrRateLimitExceeded,
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeRateLimit,
			wantCode:   "RATE_LIMIT_EXCEEDED",
		},
		{
			name:       "cancelled",
			err:        fmt.Errorf("run: %w", context.Canceled),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger()
			h := NewErrorHandler(logger, false)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/normalize/pairwise", nil)
			r = r.WithContext(infrastructure.WithTraceID(r.Context(), "trace-123"))
			w := httptest.NewRecorder()
			h.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/normalize/pairwise", body["instance"])
			assert.Equal(t, "trace-123", body["trace_id"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
			assert.NotContains(t, body, "stack")
			assert.Contains(t, buf.String(), `"request_id":"trace-123"`)
		})
	}
}

func TestErrorHandler_NilError(t *testing.T) {
	h := NewErrorHandler(nil, false)
	w := httptest.NewRecorder()
	h.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, w.Body.Len())
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	h := NewErrorHandler(nil, true)
	w := httptest.NewRecorder()
	h.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))

	body := decodeProblem(t, w)
	assert.Contains(t, body["stack"], "goroutine")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, buf := newBufferLogger()
	h := NewErrorHandler(logger, false)
	w := httptest.NewRecorder()
	h.HandlePanic(w, httptest.NewRequest(http.MethodGet, "/api/health", nil), "kaboom")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, TypeInternal, decodeProblem(t, w)["type"])
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "kaboom")
}

func TestErrorHandler_NotFound(t *testing.T) {
	h := NewErrorHandler(nil, false)
	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, TypeNotFound, body["type"])
	assert.Equal(t, "/nope", body["instance"])
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad Request", "", "").
		WithExtension("error_code", "X")

	data, err := json.Marshal(pd)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "X", body["error_code"])
	assert.NotContains(t, body, "detail")
	assert.NotContains(t, body, "instance")
}
