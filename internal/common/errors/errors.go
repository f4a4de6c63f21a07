// Package errors provides standardized error handling for the review service.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Validation errors: rejected immediately, never retried.
	ErrCodeEmptyQuery       ErrorCode = "EMPTY_QUERY"
	ErrCodeInvalidFollowup  ErrorCode = "INVALID_FOLLOWUP"
	ErrCodeFollowupLimit    ErrorCode = "FOLLOWUP_LIMIT_REACHED"
	ErrCodeUnknownProvider  ErrorCode = "UNKNOWN_PROVIDER"
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodeHistoryNotFound  ErrorCode = "HISTORY_NOT_FOUND"
	ErrCodeInvalidRosterCfg ErrorCode = "INVALID_ROSTER"

	// Invocation errors: retried up to the cap, then fatal to the stage.
	ErrCodeInvocationFailed ErrorCode = "INVOCATION_FAILED"
	ErrCodeEmptyResponse    ErrorCode = "EMPTY_RESPONSE"
	ErrCodePipelineTimeout  ErrorCode = "PIPELINE_TIMEOUT"

	// Parse errors: recovered locally by the rating stage.
	ErrCodeRatingParseFailed ErrorCode = "RATING_PARSE_FAILED"

	// Persistence errors.
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeLedgerLoadFailed ErrorCode = "LEDGER_LOAD_FAILED"
	ErrCodeLedgerSaveFailed ErrorCode = "LEDGER_SAVE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a metadata key and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	se := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		se.Details = cause.Error()
	}
	return se
}

// ==========================
// 2. Error Constructors
// ==========================

func NewValidationError(code ErrorCode, cause error) *StandardError {
	return newError(code, "Request validation failed", cause, false)
}

func NewInvocationFailedError(provider string, cause error) *StandardError {
	return newError(ErrCodeInvocationFailed, fmt.Sprintf("Provider '%s' call failed", provider), cause, true).
		WithMetadata("provider", provider)
}

func NewPipelineTimeoutError(cause error) *StandardError {
	return newError(ErrCodePipelineTimeout, "Review pipeline deadline exceeded", cause, false)
}

func NewLedgerSaveFailedError(cause error) *StandardError {
	return newError(ErrCodeLedgerSaveFailed, "Failed to save history", cause, true)
}

func NewLedgerLoadFailedError(cause error) *StandardError {
	return newError(ErrCodeLedgerLoadFailed, "Failed to load history", cause, true)
}

// ==========================
// 3. Classification
// ==========================

// Coded is implemented by sentinel errors that carry an ErrorCode.
type Coded interface {
	error
	Code() ErrorCode
}

type codedError struct {
	code ErrorCode
	msg  string
}

func (c *codedError) Error() string    { return c.msg }
func (c *codedError) Code() ErrorCode { return c.code }

// Sentinel creates a comparable sentinel error carrying a code.
func Sentinel(code ErrorCode, msg string) error {
	return &codedError{code: code, msg: msg}
}

// CodeOf extracts the most specific ErrorCode in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	var coded Coded
	if stderrors.As(err, &coded) {
		return coded.Code()
	}
	return ErrCodeInternal
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se
	}
	code := CodeOf(err)
	out := newError(code, messageFor(code), err, IsRetryableErrorCode(code))
	return out
}

func messageFor(code ErrorCode) string {
	switch GetErrorCategory(code) {
	case "VALIDATION":
		return "Request validation failed"
	case "INVOCATION":
		return "Model invocation failed"
	case "PERSISTENCE":
		return "Storage error"
	}
	return "Unexpected error"
}

func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeInvocationFailed, ErrCodeEmptyResponse, ErrCodeCacheUnavailable,
		ErrCodeLedgerLoadFailed, ErrCodeLedgerSaveFailed:
		return true
	}
	return false
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	case strings.Contains(codeStr, "INVOCATION") || strings.Contains(codeStr, "RESPONSE"):
		return "INVOCATION"
	case strings.Contains(codeStr, "PARSE"):
		return "PARSE"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "LEDGER"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "EMPTY") ||
		strings.Contains(codeStr, "LIMIT") || strings.Contains(codeStr, "UNKNOWN"):
		return "VALIDATION"
	default:
		return "INTERNAL"
	}
}
