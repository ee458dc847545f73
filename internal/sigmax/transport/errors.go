package transport

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for outbound sends.
type ErrorCategory string

const (
	// CategoryNotConfigured: endpoint URL or credential missing. Never retried.
	CategoryNotConfigured ErrorCategory = "not_configured"

	// CategoryTransport: the request did not complete (DNS, connect, reset).
	CategoryTransport ErrorCategory = "transport"

	// CategoryHTTPStatus: CityControl answered with a non-2xx status.
	CategoryHTTPStatus ErrorCategory = "http_status"

	// CategoryProtocol: the reply was not a valid Bv03 acknowledgement.
	CategoryProtocol ErrorCategory = "protocol"

	// CategoryTimeout: the configured timeout or the caller's deadline expired.
	CategoryTimeout ErrorCategory = "timeout"

	// CategoryCircuitOpen: recent sends failed and the breaker is cooling down.
	CategoryCircuitOpen ErrorCategory = "circuit_open"
)

// ErrServiceNotConfigured is returned before any I/O when the endpoint URL or
// credential is missing.
var ErrServiceNotConfigured = errors.New("sigmax/citycontrol service not configured")

// SigmaxError wraps an outbound failure with its category.
type SigmaxError struct {
	Category   ErrorCategory
	Action     string
	StatusCode int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *SigmaxError) Error() string {
	msg := fmt.Sprintf("sigmax [%s]: %s", e.Category, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *SigmaxError) Unwrap() error {
	return e.Underlying
}

func newError(category ErrorCategory, action, message string, underlying error) *SigmaxError {
	return &SigmaxError{
		Category:   category,
		Action:     action,
		Message:    message,
		Underlying: underlying,
		Retryable: category == CategoryTransport ||
			category == CategoryTimeout ||
			category == CategoryHTTPStatus ||
			category == CategoryCircuitOpen,
	}
}

// IsRetryable reports whether err is an outbound failure worth retrying.
func IsRetryable(err error) bool {
	var se *SigmaxError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// CategoryOf extracts the category, or "" for errors from elsewhere.
func CategoryOf(err error) ErrorCategory {
	var se *SigmaxError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}
