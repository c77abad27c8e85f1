package aiclient

import (
	"errors"
	"fmt"
)

// ErrorCode is the sealed set of failure categories a Client can report.
// Mirrors the shape of an upstream chat-completion error without carrying
// any provider-specific vocabulary.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "AI_INVALID_REQUEST"
	ErrUnauthorized      ErrorCode = "AI_UNAUTHORIZED"
	ErrRateLimited       ErrorCode = "AI_RATE_LIMITED"
	ErrContentFiltered   ErrorCode = "AI_CONTENT_FILTERED"
	ErrUpstreamTimeout   ErrorCode = "AI_UPSTREAM_TIMEOUT"
	ErrUpstreamError     ErrorCode = "AI_UPSTREAM_ERROR"
	ErrMalformedResponse ErrorCode = "AI_MALFORMED_RESPONSE"
)

// Error is the Client's single error type. Retryable and RetryAfter let
// internal/retrywrap and internal/breaker make policy decisions without
// inspecting HTTP status codes themselves.
type Error struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Retryable  bool
	RetryAfter int64 // seconds; 0 means no hint
}

func (e *Error) Error() string {
	return fmt.Sprintf("aiclient: %s: %s", e.Code, e.Message)
}

// IsRetryable satisfies internal/retrywrap.Policy.Retryable's shape when
// bound as a function value.
func IsRetryable(err error) bool {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Retryable
	}
	return false
}

// RetryAfterOf extracts the server-provided retry-after hint, for
// internal/retrywrap.Policy.RetryAfter.
func RetryAfterOf(err error) (seconds int64) {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.RetryAfter
	}
	return 0
}
