package serverchan

import "fmt"

// Kind classifies a failed delivery
type Kind string

const (
	// KindConfigInvalid indicates the credential cannot be routed; nothing was sent
	KindConfigInvalid Kind = "config_invalid"
	// KindTransportFailed indicates the request failed or the answer was unreadable
	KindTransportFailed Kind = "transport_failed"
	// KindRemoteRejected indicates ServerChan answered with a non-zero code
	KindRemoteRejected Kind = "remote_rejected"
)

// Delivery is the outcome of one Notify call
type Delivery struct {
	Succeeded bool

	// StatusCode is the HTTP status of the final attempt, 0 if none arrived
	StatusCode int

	// Code and Message are taken from the ServerChan response body
	Code    int
	Message string

	// Body is the raw response body
	Body string

	Err *DeliveryError
}

// DeliveryError describes why a delivery did not succeed
type DeliveryError struct {
	Kind   Kind
	Code   int
	Detail string
	Cause  error
}

// Error implements the error interface
func (e *DeliveryError) Error() string {
	if e.Kind == KindRemoteRejected {
		return fmt.Sprintf("delivery %s (code %d): %s", e.Kind, e.Code, e.Detail)
	}
	return fmt.Sprintf("delivery %s: %s", e.Kind, e.Detail)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

func failed(err *DeliveryError) Delivery {
	return Delivery{Err: err}
}
