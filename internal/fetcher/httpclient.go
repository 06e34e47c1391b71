package fetcher

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"resty.dev/v3"
)

const defaultTimeout = 10 * time.Second

// Client is the transport shared by every fetch and by the notifier. It is
// safe for concurrent use.
type Client struct {
	rc     *resty.Client
	policy RetryPolicy
}

// NewHTTPClient creates a new HTTP client that enforces timeout on every
// attempt and retries according to policy with exponential backoff.
func NewHTTPClient(policy RetryPolicy, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Millisecond
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetRetryCount(max(policy.MaxRetries, 0)).
		SetRetryWaitTime(policy.BaseDelay).
		SetRetryMaxWaitTime(policy.Backoff(max(policy.MaxRetries, 1))).
		SetRetryDefaultConditions(false).
		SetAllowNonIdempotentRetry(policy.allowsNonIdempotent()).
		SetRetryStrategy(retryStrategy(policy)).
		AddRetryConditions(retryCondition(policy)).
		AddRetryHooks(retryHook).
		AddResponseMiddleware(dropRetryAfter)

	return &Client{rc: rc, policy: policy}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, url string) (*resty.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, nil)
}

// PostJSON issues a POST request with body marshalled as JSON.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string) (*resty.Response, error) {
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return c.Do(ctx, http.MethodPost, url, body, h)
}

// Do executes a request through the retry policy. A non-nil error is always a
// *TransportError; a nil error means the final response has a 2xx status.
func (c *Client) Do(ctx context.Context, method, url string, body any, headers map[string]string) (*resty.Response, error) {
	req := c.rc.R().
		SetContext(ctx).
		SetHeaders(headers)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		te := ClassifyError(err)
		te.Attempts = req.Attempt
		return resp, te
	}

	if !resp.IsSuccess() {
		te := NewStatusError(resp.StatusCode())
		te.Attempts = req.Attempt
		return resp, te
	}

	return resp, nil
}

// Policy returns the retry policy the client was built with.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	return c.rc.Close()
}

// retryCondition adapts the policy to resty's retry loop
func retryCondition(p RetryPolicy) resty.RetryConditionFunc {
	return func(r *resty.Response, err error) bool {
		if r == nil || r.Request == nil {
			return false
		}
		return p.ShouldRetry(r.Request.Method, r.StatusCode(), err)
	}
}

// retryStrategy replaces resty's jittered backoff with the policy's
// deterministic exponential one
func retryStrategy(p RetryPolicy) resty.RetryStrategyFunc {
	return func(r *resty.Response, _ error) (time.Duration, error) {
		attempt := 1
		if r != nil && r.Request != nil {
			attempt = r.Request.Attempt
		}
		return p.Backoff(attempt), nil
	}
}

// dropRetryAfter removes the Retry-After header, which resty would otherwise
// obey instead of the policy's backoff
func dropRetryAfter(_ *resty.Client, r *resty.Response) error {
	if r.RawResponse != nil {
		r.RawResponse.Header.Del("Retry-After")
	}
	return nil
}

// retryHook logs retry attempts for observability
func retryHook(r *resty.Response, err error) {
	if err != nil {
		slog.Debug("retrying request due to error",
			"url", r.Request.URL,
			"attempt", r.Request.Attempt,
			"error", err.Error())
		return
	}

	slog.Debug("retrying request due to status code",
		"url", r.Request.URL,
		"attempt", r.Request.Attempt,
		"status_code", r.StatusCode())
}
