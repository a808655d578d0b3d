package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "error without detail",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "Resource not found",
			},
			expected: "not_found: Resource not found",
		},
		{
			name: "error with reason and detail",
			err: &AppError{
				Code:    ErrCodeUnauthorized,
				Reason:  ReasonNotFromSelfOrModule,
				Message: "Caller not authorized",
				Detail:  "caller 0x01",
			},
			expected: "unauthorized(NOT_FROM_SELF_OR_MODULE): Caller not authorized (caller 0x01)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestNewWithDetail(t *testing.T) {
	err := NewWithDetail(
		"test_code",
		"Test message",
		"Additional details",
		http.StatusBadRequest,
	)

	assert.Equal(t, "test_code", err.Code)
	assert.Equal(t, "Test message", err.Message)
	assert.Equal(t, "Additional details", err.Detail)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		reason     string
		statusCode int
	}{
		{"unauthorized", Unauthorized(ReasonNotFromHook, ""), ErrCodeUnauthorized, ReasonNotFromHook, http.StatusForbidden},
		{"invalid input", InvalidInput(ReasonInvalidLength, "3 bytes"), ErrCodeInvalidInput, ReasonInvalidLength, http.StatusBadRequest},
		{"invalid signature", InvalidSignature("bad"), ErrCodeInvalidSignature, ReasonInvalidSignature, http.StatusUnauthorized},
		{"state conflict", StateConflict(ReasonRecoveryInProgress, ""), ErrCodeStateConflict, ReasonRecoveryInProgress, http.StatusConflict},
		{"not found", NotFound(ReasonNotExists, ""), ErrCodeNotFound, ReasonNotExists, http.StatusNotFound},
		{"replay rejected", ReplayRejected(ReasonInvalidRecoveryNonce, ""), ErrCodeReplayRejected, ReasonInvalidRecoveryNonce, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.reason, tt.err.Reason)
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestIsAppError(t *testing.T) {
	t.Run("returns AppError when error is AppError", func(t *testing.T) {
		originalErr := New("test", "test", http.StatusBadRequest)
		appErr, ok := IsAppError(originalErr)

		require.True(t, ok)
		assert.Equal(t, originalErr, appErr)
	})

	t.Run("returns false when error is not AppError", func(t *testing.T) {
		stdErr := errors.New("standard error")
		appErr, ok := IsAppError(stdErr)

		assert.False(t, ok)
		assert.Nil(t, appErr)
	})

	t.Run("works with wrapped errors", func(t *testing.T) {
		originalErr := StateConflict(ReasonAlreadyExists, "")
		wrappedErr := fmt.Errorf("add owner: %w", originalErr)

		appErr, ok := IsAppError(wrappedErr)

		require.True(t, ok)
		assert.Equal(t, originalErr, appErr)
		assert.True(t, HasCode(wrappedErr, ErrCodeStateConflict))
		assert.True(t, HasReason(wrappedErr, ReasonAlreadyExists))
		assert.False(t, HasReason(wrappedErr, ReasonNotExists))
	})
}

func TestErrorCodeConstants(t *testing.T) {
	codes := []string{
		ErrCodeUnauthorized,
		ErrCodeInvalidInput,
		ErrCodeInvalidSignature,
		ErrCodeStateConflict,
		ErrCodeNotFound,
		ErrCodeReplayRejected,
		ErrCodeRateLimited,
		ErrCodeInternalError,
	}

	uniqueCodes := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, uniqueCodes[code], "error code %s is duplicate", code)
		uniqueCodes[code] = true
	}
}
