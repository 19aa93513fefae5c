package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a namespaced error code for TrustScan audit errors.
type ErrorCode string

// Request admission error codes
const (
	VALIDATION_ERROR     ErrorCode = "VALIDATION_ERROR"
	AUTHENTICATION_ERROR ErrorCode = "AUTHENTICATION_ERROR"
	RATE_LIMIT_ERROR     ErrorCode = "RATE_LIMIT_ERROR"
	QUEUE_FULL_ERROR     ErrorCode = "QUEUE_FULL_ERROR"
)

// Pipeline step error codes
const (
	SCRAPING_ERROR     ErrorCode = "SCRAPING_ERROR"
	SCRAPING_BLOCKED   ErrorCode = "SCRAPING_BLOCKED"
	SCRAPING_NOT_FOUND ErrorCode = "SCRAPING_NOT_FOUND"
	AI_ANALYSIS_ERROR  ErrorCode = "AI_ANALYSIS_ERROR"
	NETWORK_ERROR      ErrorCode = "NETWORK_ERROR"
	TIMEOUT_ERROR      ErrorCode = "TIMEOUT_ERROR"
)

// Collaborator error codes
const (
	DATABASE_ERROR ErrorCode = "DATABASE_ERROR"
	LEDGER_ERROR   ErrorCode = "LEDGER_ERROR"
)

// Internal error codes
const (
	INTERNAL_ERROR ErrorCode = "INTERNAL_ERROR"
)

// AuditError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for the orchestrator's retry logic.
type AuditError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *AuditError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *AuditError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is an AuditError with the same Code.
func (e *AuditError) Is(target error) bool {
	var auditErr *AuditError
	if errors.As(target, &auditErr) {
		return e.Code == auditErr.Code
	}
	return false
}

// NewError creates a new non-retryable AuditError with the given code and message.
func NewError(code ErrorCode, message string) *AuditError {
	return &AuditError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable AuditError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *AuditError {
	return &AuditError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable AuditError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *AuditError {
	return &AuditError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// WrapRetryableError creates a retryable AuditError that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *AuditError {
	return &AuditError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// CodeOf extracts the ErrorCode from an error chain.
// Returns INTERNAL_ERROR if the chain contains no AuditError.
func CodeOf(err error) ErrorCode {
	var auditErr *AuditError
	if errors.As(err, &auditErr) {
		return auditErr.Code
	}
	return INTERNAL_ERROR
}

// IsRetryable determines if an error is transient and may succeed on retry.
// Validation, authentication, and admission errors never are; network-class
// errors are retryable by default even when not explicitly marked.
func IsRetryable(err error) bool {
	var auditErr *AuditError
	if !errors.As(err, &auditErr) {
		return false
	}

	if auditErr.Retryable {
		return true
	}

	switch auditErr.Code {
	// Network and timeout errors are typically transient
	case NETWORK_ERROR, TIMEOUT_ERROR:
		return true

	// Scraping and AI failures may be transient unless a sub-cause says otherwise
	case SCRAPING_ERROR, AI_ANALYSIS_ERROR:
		return true

	// A blocked or missing page will not change between attempts
	case SCRAPING_BLOCKED, SCRAPING_NOT_FOUND:
		return false

	// Admission decisions are final for this request
	case VALIDATION_ERROR, AUTHENTICATION_ERROR, RATE_LIMIT_ERROR, QUEUE_FULL_ERROR:
		return false

	default:
		return false
	}
}

// HTTPStatus maps an error code to the HTTP status the API surfaces for it.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case VALIDATION_ERROR:
		return http.StatusBadRequest
	case AUTHENTICATION_ERROR:
		return http.StatusUnauthorized
	case SCRAPING_BLOCKED:
		return http.StatusForbidden
	case SCRAPING_NOT_FOUND:
		return http.StatusNotFound
	case TIMEOUT_ERROR:
		return http.StatusRequestTimeout
	case RATE_LIMIT_ERROR, QUEUE_FULL_ERROR:
		return http.StatusTooManyRequests
	case SCRAPING_ERROR, NETWORK_ERROR:
		return http.StatusBadGateway
	case AI_ANALYSIS_ERROR, DATABASE_ERROR:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
