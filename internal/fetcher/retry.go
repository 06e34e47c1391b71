package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// Default retry configuration
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
)

// RetryPolicy decides which failed attempts are retried and how long to wait
// before each retry. The zero value never retries.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryableStatuses lists the response statuses that are worth another attempt.
	RetryableStatuses map[int]bool

	// Methods lists the HTTP methods eligible for retry.
	Methods map[string]bool

	// BaseDelay is the wait before the first retry; it doubles on each subsequent retry.
	BaseDelay time.Duration
}

// DefaultRetryPolicy returns 3 retries with exponential backoff from 1s on
// connection errors and 429/500/502/503/504, for GET and POST among others.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: defaultMaxRetries,
		RetryableStatuses: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
		Methods: map[string]bool{
			http.MethodGet:     true,
			http.MethodHead:    true,
			http.MethodOptions: true,
			http.MethodPut:     true,
			http.MethodDelete:  true,
			http.MethodPost:    true,
		},
		BaseDelay: defaultBaseDelay,
	}
}

// ShouldRetry reports whether an attempt that ended with the given status or
// error may be retried. It does not look at the attempt count.
func (p RetryPolicy) ShouldRetry(method string, statusCode int, err error) bool {
	if p.MaxRetries <= 0 || !p.Methods[method] {
		return false
	}

	if err != nil {
		return isConnectionError(err)
	}

	if statusCode >= 200 && statusCode < 300 {
		return false
	}

	return p.RetryableStatuses[statusCode]
}

// Backoff returns the wait before the given retry, counted from 1:
// BaseDelay * 2^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

// allowsNonIdempotent reports whether any method outside the RFC 9110
// idempotent set is eligible, in which case resty must be told so.
func (p RetryPolicy) allowsNonIdempotent() bool {
	for m, ok := range p.Methods {
		if !ok {
			continue
		}
		switch m {
		case http.MethodGet, http.MethodHead, http.MethodOptions,
			http.MethodPut, http.MethodDelete, http.MethodTrace:
		default:
			return true
		}
	}
	return false
}

// isConnectionError reports whether err is a connection-level failure worth
// another attempt. Caller cancellation and request errors such as an
// unsupported scheme or a failed certificate check are permanent.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// *url.Error satisfies net.Error itself, so only its Timeout is telling
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
