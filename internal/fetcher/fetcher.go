package fetcher

import "context"

// Fetcher is the core interface that quote sources must implement.
// Each call retrieves the current valuation of one fund.
type Fetcher interface {
	// Fetch retrieves the valuation for code. It never returns an error:
	// failures are carried in Result.Err so that one fund's failure stays
	// local to its own Result.
	Fetch(ctx context.Context, code string) Result
}
