package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	limit := Sentinel(ErrCodeFollowupLimit, "Follow-up limit reached")
	timeout := Sentinel(ErrCodePipelineTimeout, "AI sequence timed out")

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"plain", stderrors.New("boom"), ErrCodeInternal},
		{"sentinel", limit, ErrCodeFollowupLimit},
		{"wrapped sentinel", fmt.Errorf("%w (max 5)", limit), ErrCodeFollowupLimit},
		{"standard error wins over sentinel", fmt.Errorf("%w: %w", timeout, NewInvocationFailedError("gpt", stderrors.New("x"))), ErrCodeInvocationFailed},
		{"ledger save", NewLedgerSaveFailedError(stderrors.New("disk full")), ErrCodeLedgerSaveFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestStandardError_Unwrap(t *testing.T) {
	cause := stderrors.New("deadline")
	err := NewPipelineTimeoutError(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "deadline", err.Details)
	assert.False(t, err.Retryable)
	assert.Equal(t, "PIPELINE_TIMEOUT: Review pipeline deadline exceeded (deadline)", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError(ErrCodeInvalidRequest, stderrors.New("query: expected string"))
	assert.Equal(t, ErrCodeInvalidRequest, err.Code)
	assert.Equal(t, "VALIDATION", GetErrorCategory(err.Code))
	assert.False(t, IsRetryableErrorCode(err.Code))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeEmptyQuery, http.StatusBadRequest},
		{ErrCodeInvalidRequest, http.StatusBadRequest},
		{ErrCodeUnknownProvider, http.StatusBadRequest},
		{ErrCodeHistoryNotFound, http.StatusNotFound},
		{ErrCodeFollowupLimit, http.StatusConflict},
		{ErrCodePipelineTimeout, http.StatusGatewayTimeout},
		{ErrCodeInvocationFailed, http.StatusBadGateway},
		{ErrCodeEmptyResponse, http.StatusBadGateway},
		{ErrCodeCacheUnavailable, http.StatusServiceUnavailable},
		{ErrCodeLedgerSaveFailed, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

type nopLogger struct{}

func (nopLogger) Error(string, map[string]interface{}) {}
func (nopLogger) Warn(string, map[string]interface{})  {}

func TestHandleHTTPError(t *testing.T) {
	h := NewErrorHandler(nopLogger{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/review", nil)

	h.HandleHTTPError(rec, req, fmt.Errorf("%w: %w", Sentinel(ErrCodeInvocationFailed, "AI sequence error"), stderrors.New("503")))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"AI sequence error: 503","code":"INVOCATION_FAILED"}`, rec.Body.String())
}
