package testutil

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"fundpush/internal/fetcher"
)

// MockFetcher is a mock implementation of the Fetcher interface for testing.
// It records every code it was asked for.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, code string) fetcher.Result

	mu    sync.Mutex
	calls []string
}

// Fetch implements the Fetcher interface
func (m *MockFetcher) Fetch(ctx context.Context, code string) fetcher.Result {
	m.mu.Lock()
	m.calls = append(m.calls, code)
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, code)
	}
	return fetcher.Result{Code: code, Name: code}
}

// Calls returns the codes fetched so far, in call order
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// NewMockFetcher creates a mock fetcher answering from a fixed table.
// Codes in changes succeed with that change percent, codes in failures fail
// with the given reason, anything else fails as request_failed.
func NewMockFetcher(changes map[string]string, failures map[string]fetcher.Reason) *MockFetcher {
	return &MockFetcher{
		FetchFunc: func(ctx context.Context, code string) fetcher.Result {
			if change, ok := changes[code]; ok {
				return fetcher.Result{
					Code:          code,
					Name:          "Fund " + code,
					ChangePercent: decimal.RequireFromString(change),
				}
			}
			if reason, ok := failures[code]; ok {
				return fetcher.Failed(code, reason, "mock failure", nil)
			}
			return fetcher.Failed(code, fetcher.ReasonRequestFailed, "unknown code", nil)
		},
	}
}

// Success builds a successful Result, for formatter tests
func Success(code, name, change string) fetcher.Result {
	return fetcher.Result{
		Code:          code,
		Name:          name,
		ChangePercent: decimal.RequireFromString(change),
	}
}
