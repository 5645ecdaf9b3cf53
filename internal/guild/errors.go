package guild

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for platform API calls.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorOutage         ErrorCategory = "outage"
	ErrorNotFound       ErrorCategory = "not_found"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorInternal       ErrorCategory = "internal"
)

// APIError wraps a failed platform call with its category.
type APIError struct {
	Category   ErrorCategory
	Operation  string
	StatusCode int
	Underlying error
	Retryable  bool
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("guild %s [%s]", e.Operation, e.Category)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Underlying
}

func newAPIError(category ErrorCategory, op string, status int, underlying error) *APIError {
	return &APIError{
		Category:   category,
		Operation:  op,
		StatusCode: status,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorOutage || category == ErrorRateLimited,
	}
}

// IsRetryable reports whether err is a transient platform failure.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

// CategoryOf extracts the category from err, defaulting to ErrorInternal.
func CategoryOf(err error) ErrorCategory {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category
	}
	return ErrorInternal
}

func categorizeStatus(status int) ErrorCategory {
	switch {
	case status == 401 || status == 403:
		return ErrorAuthentication
	case status == 404:
		return ErrorNotFound
	case status == 429:
		return ErrorRateLimited
	case status >= 500:
		return ErrorOutage
	default:
		return ErrorBadData
	}
}
