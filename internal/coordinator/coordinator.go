package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"fundpush/internal/fetcher"
	"fundpush/internal/logging"
)

// DefaultConcurrency is the maximum number of fetches in flight
const DefaultConcurrency = 5

// Coordinator runs one fetch per fund concurrently and aggregates results
type Coordinator struct {
	fetcher     fetcher.Fetcher
	concurrency int
	logger      *slog.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithConcurrency bounds the worker pool to n goroutines. Values <= 0 keep
// DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a new Coordinator fetching through f
func New(f fetcher.Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:     f,
		concurrency: DefaultConcurrency,
		logger:      logging.New("coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll fetches every distinct code and returns exactly one Result per
// distinct code once all fetches have finished. A failing or panicking
// fetch only affects its own Result. The order of the returned slice is
// not part of the contract.
func (c *Coordinator) FetchAll(ctx context.Context, codes []string) []fetcher.Result {
	unique := Dedup(codes)
	if len(unique) == 0 {
		return []fetcher.Result{}
	}

	p := pool.NewWithResults[fetcher.Result]().WithMaxGoroutines(c.concurrency)
	for _, code := range unique {
		p.Go(func() fetcher.Result {
			return c.fetchOne(ctx, code)
		})
	}
	results := p.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	c.logger.Debug("fetch complete", "funds", len(results), "failed", failed)

	return results
}

// fetchOne runs a single fetch, turning a panic into a failed Result
func (c *Coordinator) fetchOne(ctx context.Context, code string) fetcher.Result {
	var result fetcher.Result
	if recovered := panics.Try(func() {
		result = c.fetcher.Fetch(ctx, code)
	}); recovered != nil {
		err := recovered.AsError()
		result = fetcher.Failed(code, fetcher.ReasonRequestFailed, fmt.Sprintf("panic: %v", recovered.Value), err)
	}

	// The code is the aggregation key; never trust a fetcher to echo it
	result.Code = code
	if result.Err != nil {
		result.Err.Code = code
		c.logger.Debug("fetch failed", "code", code, "reason", result.Err.Reason, "detail", result.Err.Detail)
	} else {
		c.logger.Debug("fetched", "code", code, "name", result.Name, "change", result.ChangePercent.String())
	}
	return result
}

// Dedup returns codes with exact duplicates removed, keeping the first
// occurrence of each.
func Dedup(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	unique := make([]string, 0, len(codes))
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		unique = append(unique, code)
	}
	return unique
}
