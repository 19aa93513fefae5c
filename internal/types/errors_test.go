package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AuditError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewError(VALIDATION_ERROR, "url is required"),
			expected: "[VALIDATION_ERROR] url is required",
		},
		{
			name:     "with cause",
			err:      WrapError(SCRAPING_ERROR, "fetch failed", fmt.Errorf("connection refused")),
			expected: "[SCRAPING_ERROR] fetch failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAuditError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("tcp reset")
	err := WrapError(NETWORK_ERROR, "upstream unreachable", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestAuditError_Is(t *testing.T) {
	err := NewError(TIMEOUT_ERROR, "step deadline exceeded")

	assert.True(t, errors.Is(err, NewError(TIMEOUT_ERROR, "different message")))
	assert.False(t, errors.Is(err, NewError(NETWORK_ERROR, "step deadline exceeded")))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{
			name:     "audit error",
			err:      NewError(AI_ANALYSIS_ERROR, "model unavailable"),
			expected: AI_ANALYSIS_ERROR,
		},
		{
			name:     "wrapped audit error",
			err:      fmt.Errorf("outer: %w", NewError(LEDGER_ERROR, "anchor failed")),
			expected: LEDGER_ERROR,
		},
		{
			name:     "plain error",
			err:      fmt.Errorf("something broke"),
			expected: INTERNAL_ERROR,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"network error", NewError(NETWORK_ERROR, "dns failure"), true},
		{"timeout error", NewError(TIMEOUT_ERROR, "deadline"), true},
		{"scraping error", NewError(SCRAPING_ERROR, "fetch failed"), true},
		{"ai analysis error", NewError(AI_ANALYSIS_ERROR, "bad response"), true},
		{"scraping blocked", NewError(SCRAPING_BLOCKED, "403"), false},
		{"scraping not found", NewError(SCRAPING_NOT_FOUND, "404"), false},
		{"validation error", NewError(VALIDATION_ERROR, "bad url"), false},
		{"authentication error", NewError(AUTHENTICATION_ERROR, "bad token"), false},
		{"rate limit error", NewError(RATE_LIMIT_ERROR, "limited"), false},
		{"explicitly retryable", NewRetryableError(DATABASE_ERROR, "locked"), true},
		{"plain error", fmt.Errorf("oops"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{VALIDATION_ERROR, http.StatusBadRequest},
		{AUTHENTICATION_ERROR, http.StatusUnauthorized},
		{SCRAPING_BLOCKED, http.StatusForbidden},
		{SCRAPING_NOT_FOUND, http.StatusNotFound},
		{TIMEOUT_ERROR, http.StatusRequestTimeout},
		{RATE_LIMIT_ERROR, http.StatusTooManyRequests},
		{QUEUE_FULL_ERROR, http.StatusTooManyRequests},
		{SCRAPING_ERROR, http.StatusBadGateway},
		{NETWORK_ERROR, http.StatusBadGateway},
		{AI_ANALYSIS_ERROR, http.StatusServiceUnavailable},
		{DATABASE_ERROR, http.StatusServiceUnavailable},
		{INTERNAL_ERROR, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.code))
		})
	}
}

func TestAuditID(t *testing.T) {
	id := NewAuditID()
	require.NoError(t, id.Validate())
	assert.False(t, id.IsZero())

	parsed, err := ParseAuditID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseAuditID("not-a-uuid")
	assert.Error(t, err)

	_, err = ParseAuditID("")
	assert.Error(t, err)
}

func TestHealthState_IsValid(t *testing.T) {
	assert.True(t, HealthStateHealthy.IsValid())
	assert.True(t, HealthStateDegraded.IsValid())
	assert.True(t, HealthStateUnhealthy.IsValid())
	assert.False(t, HealthState("unknown").IsValid())
}

func TestHealthStatus_Constructors(t *testing.T) {
	healthy := Healthy("")
	assert.Equal(t, HealthStateHealthy, healthy.State)
	assert.False(t, healthy.CheckedAt.IsZero())

	degraded := Degraded("success rate low")
	assert.Equal(t, HealthStateDegraded, degraded.State)
	assert.Equal(t, "success rate low", degraded.Message)

	unhealthy := Unhealthy("down")
	assert.Equal(t, HealthStateUnhealthy, unhealthy.State)
}
