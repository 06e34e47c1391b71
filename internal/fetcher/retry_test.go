package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", p.MaxRetries)
	}
	if p.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", p.BaseDelay)
	}

	for _, code := range []int{429, 500, 502, 503, 504} {
		if !p.RetryableStatuses[code] {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, m := range []string{http.MethodGet, http.MethodPost} {
		if !p.Methods[m] {
			t.Errorf("method %s should be eligible", m)
		}
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := DefaultRetryPolicy()
	netErr := &url.Error{Op: "Get", URL: "http://quotes.test", Err: &net.OpError{
		Op: "dial", Net: "tcp", Err: errors.New("connection refused"),
	}}
	dropped := &url.Error{Op: "Get", URL: "http://quotes.test", Err: io.EOF}
	badScheme := &url.Error{Op: "Get", URL: "ftp://quotes.test", Err: errors.New(`unsupported protocol scheme "ftp"`)}
	badCert := &url.Error{Op: "Get", URL: "https://quotes.test", Err: &tls.CertificateVerificationError{
		Err: errors.New("x509: certificate signed by unknown authority"),
	}}

	tests := []struct {
		name   string
		method string
		status int
		err    error
		want   bool
	}{
		{"success is never retried", http.MethodGet, 200, nil, false},
		{"no content is never retried", http.MethodGet, 204, nil, false},
		{"rate limited", http.MethodGet, 429, nil, true},
		{"internal server error", http.MethodGet, 500, nil, true},
		{"bad gateway", http.MethodGet, 502, nil, true},
		{"service unavailable", http.MethodGet, 503, nil, true},
		{"gateway timeout", http.MethodGet, 504, nil, true},
		{"not implemented", http.MethodGet, 501, nil, false},
		{"not found", http.MethodGet, 404, nil, false},
		{"request timeout status", http.MethodGet, 408, nil, false},
		{"post is eligible", http.MethodPost, 503, nil, true},
		{"patch is not eligible", http.MethodPatch, 503, nil, false},
		{"connection error", http.MethodGet, 0, netErr, true},
		{"dns failure", http.MethodGet, 0, &net.DNSError{Err: "no such host", Name: "quotes.test"}, true},
		{"connection dropped", http.MethodGet, 0, dropped, true},
		{"bad scheme", http.MethodGet, 0, badScheme, false},
		{"certificate rejected", http.MethodGet, 0, badCert, false},
		{"plain error", http.MethodGet, 0, errors.New("boom"), false},
		{"deadline exceeded", http.MethodGet, 0, fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"caller cancelled", http.MethodGet, 0, fmt.Errorf("get: %w", context.Canceled), false},
		{"connection error on ineligible method", http.MethodPatch, 0, netErr, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldRetry(tt.method, tt.status, tt.err); got != tt.want {
				t.Errorf("ShouldRetry(%s, %d, %v) = %v, want %v", tt.method, tt.status, tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_ZeroRetries(t *testing.T) {
	p := DefaultRetryPolicy()
	p.MaxRetries = 0

	if p.ShouldRetry(http.MethodGet, 503, nil) {
		t.Error("ShouldRetry() = true with MaxRetries 0")
	}

	var zero RetryPolicy
	if zero.ShouldRetry(http.MethodGet, 503, errors.New("boom")) {
		t.Error("zero RetryPolicy should never retry")
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_AllowsNonIdempotent(t *testing.T) {
	if !DefaultRetryPolicy().allowsNonIdempotent() {
		t.Error("default policy includes POST and should allow non-idempotent retry")
	}

	p := RetryPolicy{Methods: map[string]bool{http.MethodGet: true, http.MethodPost: false}}
	if p.allowsNonIdempotent() {
		t.Error("GET-only policy should not allow non-idempotent retry")
	}
}
