// Package serverchan delivers a report through the ServerChan push API.
//
// Two endpoint families exist. Credentials of the form "sctp<n>t..." belong to
// ServerChan 3 and are sent to https://<n>.push.ft07.com/send/<key>.send;
// every other credential goes to https://sctapi.ftqq.com/<key>.send.
package serverchan

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"fundpush/internal/fetcher"
	"fundpush/internal/ratelimit"
)

const (
	// DefaultBaseURL is the classic ServerChan endpoint
	DefaultBaseURL = "https://sctapi.ftqq.com"
	// DefaultPushURL is the ServerChan 3 endpoint template; {num} is the
	// account number embedded in the credential
	DefaultPushURL = "https://{num}.push.ft07.com"

	numPlaceholder = "{num}"
	pushPrefix     = "sctp"
	contentType    = "application/json;charset=utf-8"
	redacted       = "<sendkey>"
)

var pushKeyPattern = regexp.MustCompile(`^sctp(\d+)t`)

// Notifier posts messages to ServerChan
type Notifier struct {
	client  *fetcher.Client
	baseURL string
	pushURL string
	limiter *ratelimit.Limiter
}

// Option configures a Notifier
type Option func(*Notifier)

// WithBaseURL overrides the classic endpoint base URL
func WithBaseURL(u string) Option {
	return func(n *Notifier) {
		if u != "" {
			n.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPushURL overrides the ServerChan 3 endpoint template. A "{num}" in the
// template is replaced by the account number.
func WithPushURL(template string) Option {
	return func(n *Notifier) {
		if template != "" {
			n.pushURL = strings.TrimRight(template, "/")
		}
	}
}

// WithLimiter throttles deliveries through l under ratelimit.APIServerChan
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(n *Notifier) {
		n.limiter = l
	}
}

// New creates a notifier sending through client.
func New(client *fetcher.Client, opts ...Option) *Notifier {
	n := &Notifier{
		client:  client,
		baseURL: DefaultBaseURL,
		pushURL: DefaultPushURL,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Endpoint derives the production send URL for credential.
func Endpoint(credential string) (string, error) {
	return New(nil).Endpoint(credential)
}

// Endpoint derives the send URL for credential. It returns a
// *DeliveryError of kind config_invalid when the credential cannot be routed.
func (n *Notifier) Endpoint(credential string) (string, error) {
	u, derr := n.endpoint(credential)
	if derr != nil {
		return "", derr
	}
	return u, nil
}

func (n *Notifier) endpoint(credential string) (string, *DeliveryError) {
	if credential == "" {
		return "", &DeliveryError{Kind: KindConfigInvalid, Detail: "empty sendkey"}
	}

	if m := pushKeyPattern.FindStringSubmatch(credential); m != nil {
		base := strings.ReplaceAll(n.pushURL, numPlaceholder, m[1])
		return fmt.Sprintf("%s/send/%s.send", base, credential), nil
	}

	if strings.HasPrefix(credential, pushPrefix) {
		return "", &DeliveryError{
			Kind:   KindConfigInvalid,
			Detail: "sendkey starts with sctp but carries no sctp<n>t account marker",
		}
	}

	return fmt.Sprintf("%s/%s.send", n.baseURL, credential), nil
}

// response is the JSON envelope both endpoint families answer with
type response struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Notify sends report under title. Entries in extra (channel, openid, ...) are
// sent alongside title and desp but never replace them.
func (n *Notifier) Notify(ctx context.Context, credential, title, report string, extra map[string]any) Delivery {
	endpoint, derr := n.endpoint(credential)
	if derr != nil {
		return failed(derr)
	}

	if err := n.limiter.Wait(ctx, ratelimit.APIServerChan); err != nil {
		return failed(&DeliveryError{Kind: KindTransportFailed, Detail: err.Error(), Cause: err})
	}

	payload := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		payload[k] = v
	}
	payload["title"] = title
	payload["desp"] = report

	resp, err := n.client.PostJSON(ctx, endpoint, payload, map[string]string{"Content-Type": contentType})

	var d Delivery
	if resp != nil {
		d.StatusCode = resp.StatusCode()
		d.Body = resp.String()
	}

	var r response
	decodeErr := json.Unmarshal([]byte(d.Body), &r)
	hasCode := decodeErr == nil && r.Code != nil
	if hasCode {
		d.Code = *r.Code
		d.Message = r.Message
	}

	if err != nil {
		// ServerChan also reports its own error codes with a non-2xx status
		if hasCode && d.Code != 0 {
			d.Err = &DeliveryError{Kind: KindRemoteRejected, Code: d.Code, Detail: r.Message, Cause: err}
			return d
		}
		d.Err = &DeliveryError{
			Kind:   KindTransportFailed,
			Detail: strings.ReplaceAll(err.Error(), credential, redacted),
			Cause:  err,
		}
		return d
	}

	if !hasCode {
		detail := "response has no code field"
		if decodeErr != nil {
			detail = "unparsable response: " + decodeErr.Error()
		}
		d.Err = &DeliveryError{Kind: KindTransportFailed, Detail: detail, Cause: decodeErr}
		return d
	}

	if d.Code != 0 {
		d.Err = &DeliveryError{Kind: KindRemoteRejected, Code: d.Code, Detail: r.Message}
		return d
	}

	d.Succeeded = true
	return d
}
