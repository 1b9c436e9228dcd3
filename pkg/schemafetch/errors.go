package schemafetch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidURL is returned when the schema URL is empty or not an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid schema URL")

// Reason classifies why a fetch attempt failed.
type Reason string

// Failure reasons.
const (
	ReasonNone       Reason = ""
	ReasonTimeout    Reason = "timeout"
	ReasonHTTPStatus Reason = "http_status"
	ReasonNetwork    Reason = "network"
	ReasonInvalid    Reason = "invalid_document"
	ReasonCanceled   Reason = "canceled"
)

// TimeoutError is returned when a single attempt exceeds its timeout.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch %s: timed out after %s", e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// HTTPStatusError is returned when the server answers with a non-2xx status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %s", e.URL, e.Status)
}

// NetworkError wraps transport-level failures (DNS, connection refused, reset).
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// InvalidDocumentError is returned when a response arrived but its content
// is empty or cannot be parsed as the expected kind. It is never retried.
type InvalidDocumentError struct {
	URL    string
	Kind   Kind
	Reason string
	Err    error
}

func (e *InvalidDocumentError) Error() string {
	kind := "schema"
	if e.Kind != KindAuto {
		kind = string(e.Kind)
	}
	msg := fmt.Sprintf("invalid %s document from %s: %s", kind, e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidDocumentError) Unwrap() error { return e.Err }

// ExhaustedError is returned once every attempt in the retry budget failed.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: giving up after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Classify returns the failure reason carried by err.
func Classify(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	var (
		timeoutErr *TimeoutError
		statusErr  *HTTPStatusError
		netErr     *NetworkError
		invalidErr *InvalidDocumentError
	)
	switch {
	case errors.As(err, &invalidErr):
		return ReasonInvalid
	case errors.As(err, &timeoutErr):
		return ReasonTimeout
	case errors.As(err, &statusErr):
		return ReasonHTTPStatus
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.As(err, &netErr):
		return ReasonNetwork
	default:
		return ReasonNetwork
	}
}

// IsRetryable reports whether err is a transient fetch failure.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case ReasonTimeout, ReasonHTTPStatus, ReasonNetwork:
		return true
	default:
		return false
	}
}
