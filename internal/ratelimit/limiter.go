package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different external APIs we interact with
type API string

const (
	// APIFundgz represents the fund valuation quote endpoint
	APIFundgz API = "fundgz"
	// APIServerChan represents the ServerChan push API
	APIServerChan API = "serverchan"
)

// Limiter manages rate limits for different APIs. A nil *Limiter, or an API
// without a configured limit, never blocks.
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New returns a limiter allowing limits[api] requests per second for each
// API. Limits that are zero or negative leave the API unlimited.
func New(limits map[API]float64) *Limiter {
	l := &Limiter{
		limiters: make(map[API]*rate.Limiter),
	}
	for api, perSecond := range limits {
		l.SetLimit(api, perSecond)
	}
	return l
}

// SetLimit replaces the limit for api. A value <= 0 removes it.
func (l *Limiter) SetLimit(api API, perSecond float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if perSecond <= 0 {
		delete(l.limiters, api)
		return
	}
	l.limiters[api] = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	limiter := l.get(api)
	if limiter == nil {
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	limiter := l.get(api)
	if limiter == nil {
		return true
	}

	return limiter.Allow()
}

func (l *Limiter) get(api API) *rate.Limiter {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiters[api]
}
