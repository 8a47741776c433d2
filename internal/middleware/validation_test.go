package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "affynorm/internal/errors"
	"affynorm/internal/shared/testutil"
	api "affynorm/pkg/contracts/api/v1"
)

func newJSONRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRequestValidatorDecode(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewRequestValidator(logger, 1024)

	tests := []struct {
		name       string
		body       string
		dst        interface{}
		wantStatus int
		wantCode   string
		wantFields map[string]string
	}{
		{
			name: "valid pairwise",
			body: `{"current":[1,2],"reference":[2,4],"options":{"mode":"untilt"}}`,
			dst:  &api.PairwiseRequest{},
		},
		{
			name:       "empty body",
			body:       ``,
			dst:        &api.BiweightRequest{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "trailing data",
			body:       `{"values":[1]} {"values":[2]}`,
			dst:        &api.BiweightRequest{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "wrong type",
			body:       `{"values":"1,2"}`,
			dst:        &api.BiweightRequest{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "length mismatch",
			body:       `{"current":[1,2],"reference":[2]}`,
			dst:        &api.PairwiseRequest{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
			wantFields: map[string]string{"reference": "reference must have the same length as current"},
		},
		{
			name:       "nested option out of range",
			body:       `{"current":[1],"reference":[1],"options":{"window_fraction":2}}`,
			dst:        &api.PairwiseRequest{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
			wantFields: map[string]string{"options.window_fraction": "window_fraction must be less than or equal to 1"},
		},
		{
			name:       "missing values",
			body:       `{}`,
			dst:        &api.DensityModeRequest{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
			wantFields: map[string]string{"values": "values is required"},
		},
		{
			name:       "grid too small",
			body:       `{"values":[1],"grid_size":4}`,
			dst:        &api.DensityModeRequest{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
			wantFields: map[string]string{"grid_size": "grid_size must be greater than or equal to 16"},
		},
		{
			name:       "empty probe row",
			body:       `{"values":[[1,2],[]]}`,
			dst:        &api.MedianPolishRequest{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
			wantFields: map[string]string{"values[1]": "values[1] must hold at least 1 values"},
		},
		{
			name:       "body too large",
			body:       `{"values":[` + strings.Repeat("1,", 600) + `1]}`,
			dst:        &api.BiweightRequest{},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "PAYLOAD_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Decode(newJSONRequest(tt.body), tt.dst)
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)

			if tt.wantFields != nil {
				details, ok := apiErr.Details.([]apierrors.ValidationError)
				require.True(t, ok)
				got := map[string]string{}
				for _, d := range details {
					got[d.Field] = d.Message
				}
				for field, msg := range tt.wantFields {
					assert.Equal(t, msg, got[field], "field %s", field)
				}
			}
		})
	}
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("application/json")(okHandler)

	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{name: "json", method: http.MethodPost, contentType: "application/json; charset=utf-8", want: http.StatusOK},
		{name: "missing", method: http.MethodPost, contentType: "", want: http.StatusBadRequest},
		{name: "form", method: http.MethodPost, contentType: "application/x-www-form-urlencoded", want: http.StatusUnsupportedMediaType},
		{name: "get ignores header", method: http.MethodGet, contentType: "", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
