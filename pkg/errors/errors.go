package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a kernel-level failure. Code is the error class, Reason is the
// machine-readable revert tag surfaced to callers.
type AppError struct {
	Code       string `json:"code"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	head := e.Code
	if e.Reason != "" {
		head = fmt.Sprintf("%s(%s)", e.Code, e.Reason)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", head, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", head, e.Message)
}

// Error classes
const (
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeInvalidInput     = "invalid_input"
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeStateConflict    = "state_conflict"
	ErrCodeNotFound         = "not_found"
	ErrCodeReplayRejected   = "replay_rejected"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternalError    = "internal_error"
)

// Revert reason tags
const (
	ReasonNotFromSelfOrModule   = "NOT_FROM_SELF_OR_MODULE"
	ReasonNotFromSelf           = "NOT_FROM_SELF"
	ReasonNotFromModule         = "NOT_FROM_MODULE"
	ReasonNotFromHook           = "NOT_FROM_HOOK"
	ReasonNotFromFactory        = "NOT_FROM_FACTORY"
	ReasonNotFromOwner          = "NOT_FROM_OWNER"
	ReasonInvalidKey            = "INVALID_KEY"
	ReasonInvalidLength         = "INVALID_LENGTH"
	ReasonZeroAddress           = "ZERO_ADDRESS"
	ReasonNoInterface           = "NO_INTERFACE"
	ReasonAlreadyExists         = "ALREADY_EXISTS"
	ReasonNotExists             = "NOT_EXISTS"
	ReasonEmptyOwners           = "EMPTY_OWNERS"
	ReasonInvalidHookData       = "INVALID_HOOK_DATA"
	ReasonValidationHookFailed  = "VALIDATION_HOOK_FAILED"
	ReasonExecutionHookFailed   = "EXECUTION_HOOK_FAILED"
	ReasonInvalidSignature      = "INVALID_SIGNATURE"
	ReasonInvalidNonce          = "INVALID_NONCE"
	ReasonInvalidRecoveryNonce  = "INVALID_RECOVERY_NONCE"
	ReasonRecoveryInProgress    = "RECOVERY_IN_PROGRESS"
	ReasonRecoveryNotStarted    = "RECOVERY_NOT_STARTED"
	ReasonRecoveryNotInited     = "RECOVERY_NOT_INITED"
	ReasonTimelockNotPassed     = "TIMELOCK_NOT_PASSED"
	ReasonInsufficientGuardians = "INSUFFICIENT_GUARDIANS"
	ReasonInvalidThreshold      = "INVALID_THRESHOLD"
	ReasonInvalidTimelock       = "INVALID_TIMELOCK"
	ReasonInvalidInitializer    = "INVALID_INITIALIZER"
	ReasonInitializationFailed  = "INITIALIZATION_FAILED"
	ReasonAlreadyInitialized    = "ALREADY_INITIALIZED"
	ReasonNotInitialized        = "NOT_INITIALIZED"
	ReasonCallFailed            = "CALL_FAILED"
	ReasonInsufficientBalance   = "INSUFFICIENT_BALANCE"
	ReasonRecursiveModuleCall   = "RECURSIVE_MODULE_CALL"
	ReasonSameImplementation    = "SAME_IMPLEMENTATION"
	ReasonUnknownMethod         = "UNKNOWN_METHOD"
	ReasonNoCode                = "NO_CODE"
)

// ErrRateLimited is returned to clients that exceed their request rate.
var ErrRateLimited = &AppError{
	Code:       ErrCodeRateLimited,
	Message:    "Too many requests",
	StatusCode: http.StatusTooManyRequests,
}

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// Unauthorized reports a failed caller check (self-or-module, hook-only slot, ...).
func Unauthorized(reason, detail string) *AppError {
	return &AppError{
		Code:       ErrCodeUnauthorized,
		Reason:     reason,
		Message:    "Caller not authorized",
		Detail:     detail,
		StatusCode: http.StatusForbidden,
	}
}

// InvalidInput reports a malformed payload.
func InvalidInput(reason, detail string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidInput,
		Reason:     reason,
		Message:    "Invalid input",
		Detail:     detail,
		StatusCode: http.StatusBadRequest,
	}
}

// InvalidSignature creates an invalid signature error
func InvalidSignature(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidSignature,
		Reason:     ReasonInvalidSignature,
		Message:    "Invalid signature",
		Detail:     detail,
		StatusCode: http.StatusUnauthorized,
	}
}

// StateConflict reports an operation that is not allowed in the current state.
func StateConflict(reason, detail string) *AppError {
	return &AppError{
		Code:       ErrCodeStateConflict,
		Reason:     reason,
		Message:    "State conflict",
		Detail:     detail,
		StatusCode: http.StatusConflict,
	}
}

// NotFound reports a removal or lookup of a non-member.
func NotFound(reason, detail string) *AppError {
	return &AppError{
		Code:       ErrCodeNotFound,
		Reason:     reason,
		Message:    "Not found",
		Detail:     detail,
		StatusCode: http.StatusNotFound,
	}
}

// ReplayRejected reports a stale nonce.
func ReplayRejected(reason, detail string) *AppError {
	return &AppError{
		Code:       ErrCodeReplayRejected,
		Reason:     reason,
		Message:    "Replay rejected",
		Detail:     detail,
		StatusCode: http.StatusConflict,
	}
}

// Internal wraps an unexpected failure.
func Internal(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal error",
		Detail:     detail,
		StatusCode: http.StatusInternalServerError,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given error class.
func HasCode(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}

// HasReason reports whether err carries the given revert tag.
func HasReason(err error, reason string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Reason == reason
}
