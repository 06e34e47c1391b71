// Package fundgz fetches intraday fund valuation estimates from the
// fundgz quote endpoint, which answers with a JSONP script of the form
//
//	jsonpgz({"fundcode":"020670","name":"...","gszzl":"-0.52",...});
package fundgz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"fundpush/internal/fetcher"
	"fundpush/internal/ratelimit"
)

const (
	// DefaultBaseURL is the production quote host
	DefaultBaseURL = "https://fundgz.1234567.com.cn"

	callbackName = "jsonpgz"
	excerptLen   = 64
)

// QuoteFetcher fetches fund valuations from fundgz
type QuoteFetcher struct {
	client  *fetcher.Client
	baseURL string
	limiter *ratelimit.Limiter
}

// Option configures a QuoteFetcher
type Option func(*QuoteFetcher)

// WithLimiter throttles requests through l under ratelimit.APIFundgz
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(f *QuoteFetcher) {
		f.limiter = l
	}
}

// NewQuoteFetcher creates a new fund quote fetcher. An empty baseURL selects
// DefaultBaseURL.
func NewQuoteFetcher(client *fetcher.Client, baseURL string, opts ...Option) *QuoteFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	f := &QuoteFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the quote URL for code
func (f *QuoteFetcher) URL(code string) string {
	return fmt.Sprintf("%s/js/%s.js", f.baseURL, url.PathEscape(code))
}

// Fetch retrieves the current valuation estimate for code
func (f *QuoteFetcher) Fetch(ctx context.Context, code string) fetcher.Result {
	if err := f.limiter.Wait(ctx, ratelimit.APIFundgz); err != nil {
		return fetcher.Failed(code, fetcher.ReasonRequestFailed, err.Error(), err)
	}

	resp, err := f.client.Get(ctx, f.URL(code))
	if err != nil {
		return fetcher.Failed(code, fetcher.ReasonRequestFailed, err.Error(), err)
	}

	return Parse(code, resp.String())
}

// Parse turns a quote response body into a Result for code. The payload is
// decoded as JSON, never evaluated.
func Parse(code, body string) fetcher.Result {
	payload, ok := extractPayload(body)
	if !ok {
		return fetcher.Failed(code, fetcher.ReasonFormatMismatch,
			fmt.Sprintf("%s(...) envelope not found in response %q", callbackName, excerpt(body)), nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return fetcher.Failed(code, fetcher.ReasonParseError, err.Error(), err)
	}
	if fields == nil {
		return fetcher.Failed(code, fetcher.ReasonParseError, "payload is not a JSON object", nil)
	}

	change, err := decimalField(fields["gszzl"])
	if err != nil {
		return fetcher.Failed(code, fetcher.ReasonParseError,
			fmt.Sprintf("gszzl: %v", err), err)
	}

	result := fetcher.Result{
		Code:          code,
		Name:          stringField(fields["name"]),
		ChangePercent: change,
		EstimatedAt:   stringField(fields["gztime"]),
	}
	if result.Name == "" {
		result.Name = "基金 " + code
	}

	// Informational only; a bad value here does not invalidate the quote
	if nav, err := decimalField(fields["dwjz"]); err == nil {
		result.NAV = nav
	}
	if est, err := decimalField(fields["gsz"]); err == nil {
		result.Estimate = est
	}

	return result
}

// extractPayload returns the text between "jsonpgz(" and the last ");"
func extractPayload(body string) (string, bool) {
	_, rest, found := strings.Cut(body, callbackName+"(")
	if !found {
		return "", false
	}

	end := strings.LastIndex(rest, ");")
	if end < 0 {
		return "", false
	}

	payload := strings.TrimSpace(rest[:end])
	if payload == "" {
		// unknown fund codes come back as "jsonpgz();"
		return "", false
	}
	return payload, true
}

// decimalField coerces a JSON string or number to a decimal. Absent, null
// and empty-string values are zero.
func decimalField(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero, nil
	}

	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return decimal.Zero, nil
		}
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %s", text)
	}
	return d, nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func excerpt(body string) string {
	body = strings.TrimSpace(body)
	if r := []rune(body); len(r) > excerptLen {
		return string(r[:excerptLen]) + "..."
	}
	return body
}
