package fetcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Result represents the outcome of a fetch operation for one fund.
// It's designed to be produced by worker goroutines and merged by a
// coordinator once every worker has finished.
type Result struct {
	// Code is the fund identifier this result belongs to
	Code string

	// Name is the fund's display name
	Name string

	// ChangePercent is the estimated intraday change, in percent
	ChangePercent decimal.Decimal

	// NAV is the last published net asset value, zero if unknown
	NAV decimal.Decimal

	// Estimate is the estimated current net asset value, zero if unknown
	Estimate decimal.Decimal

	// EstimatedAt is the source's timestamp for Estimate, as sent
	EstimatedAt string

	// Err is non-nil when the fetch failed. If Err is not nil, the other
	// fields except Code should be considered invalid.
	Err *QuoteError
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Err == nil
}

// Reason enumerates why a quote could not be produced
type Reason string

const (
	// ReasonRequestFailed indicates the transport gave up (timeout, network, bad status)
	ReasonRequestFailed Reason = "request_failed"
	// ReasonFormatMismatch indicates the body lacks the expected callback envelope
	ReasonFormatMismatch Reason = "format_mismatch"
	// ReasonParseError indicates the payload is not a valid quote object
	ReasonParseError Reason = "parse_error"
)

// QuoteError describes a failed quote for one fund
type QuoteError struct {
	Code   string
	Reason Reason
	Detail string
	Cause  error
}

// Error implements the error interface
func (e *QuoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("fund %s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("fund %s: %s: %s", e.Code, e.Reason, e.Detail)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *QuoteError) Unwrap() error {
	return e.Cause
}

// Failed builds a failed Result for code.
func Failed(code string, reason Reason, detail string, cause error) Result {
	return Result{
		Code: code,
		Err: &QuoteError{
			Code:   code,
			Reason: reason,
			Detail: detail,
			Cause:  cause,
		},
	}
}
