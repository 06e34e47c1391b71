package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorType represents the category of a transport failure
type ErrorType string

const (
	// ErrorTypeTimeout indicates the request exceeded the per-request timeout
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeNetwork indicates a connection-level error (connection refused, DNS, reset, etc.)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeHTTPStatus indicates the server answered with a non-success status
	ErrorTypeHTTPStatus ErrorType = "http_status"
)

// TransportError is the terminal error returned by Client once its retry
// policy gives up.
type TransportError struct {
	Type       ErrorType
	StatusCode int
	Attempts   int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(cause error) *TransportError {
	return &TransportError{
		Type:    ErrorTypeTimeout,
		Message: "request timed out",
		Cause:   cause,
	}
}

// NewNetworkError creates a network error
func NewNetworkError(cause error) *TransportError {
	msg := "network request failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &TransportError{
		Type:    ErrorTypeNetwork,
		Message: msg,
		Cause:   cause,
	}
}

// NewStatusError creates an error carrying the last observed HTTP status
func NewStatusError(statusCode int) *TransportError {
	return &TransportError{
		Type:       ErrorTypeHTTPStatus,
		StatusCode: statusCode,
		Message:    statusMessage(statusCode),
	}
}

func statusMessage(statusCode int) string {
	switch {
	case statusCode == 429:
		return "rate limit exceeded"
	case statusCode >= 500:
		return "server returned an error"
	case statusCode >= 400:
		return fmt.Sprintf("client error: HTTP %d", statusCode)
	default:
		return fmt.Sprintf("unexpected status code: %d", statusCode)
	}
}

// ClassifyError turns a request execution error into a TransportError.
func ClassifyError(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	if isTimeout(err) {
		return NewTimeoutError(err)
	}
	return NewNetworkError(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
