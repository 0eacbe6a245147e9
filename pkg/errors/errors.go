package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies failures from the remote Jira API
type ErrorType string

const (
	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeServer    ErrorType = "server"
	ErrorTypeClient    ErrorType = "client"
	ErrorTypeParsing   ErrorType = "parsing"
	ErrorTypeNotFound  ErrorType = "not_found"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error represents a remote API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// RetryAfter carries the server-provided wait hint from a 429 response,
	// zero when the server gave none
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed error
func New(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Code: code, Message: message}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServer, ErrorTypeParsing:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	case 400, 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// GetType extracts the ErrorType from an error chain, ErrorTypeUnknown when
// the error carries no type information.
func GetType(err error) ErrorType {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// RetryAfterHint extracts a server-provided wait hint from an error chain,
// zero when none is present.
func RetryAfterHint(err error) time.Duration {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// IsRateLimited reports whether the error chain contains a rate limit error
func IsRateLimited(err error) bool {
	return GetType(err) == ErrorTypeRateLimit
}
