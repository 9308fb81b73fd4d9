// errors.go
// ---------
// This file defines the NormalizedError type and the error taxonomy used across
// the SDK. Every failure that leaves the façade is a *NormalizedError: transport
// and protocol failures are classified into a fixed set of kinds so callers can
// translate them without inspecting raw transport errors.
//
// Kinds:
// - KindTimeout: the attempt (or the whole call) ran out of time.
// - KindConnection: transport-level failure (dial error, reset, broken conn).
// - KindRateLimited: local admission rejected the request, or upstream sent 429.
// - KindUpstream4xx: upstream client error, never retried.
// - KindUpstream5xx: upstream server error, retried for idempotent requests.
// - KindSerialization: upstream body was not valid JSON.
package hyperbridge

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a NormalizedError.
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindConnection    ErrorKind = "connection"
	KindRateLimited   ErrorKind = "rate_limited"
	KindUpstream4xx   ErrorKind = "upstream_4xx"
	KindUpstream5xx   ErrorKind = "upstream_5xx"
	KindSerialization ErrorKind = "serialization"
)

// maxErrorBodyBytes caps how much of an upstream body an error carries.
const maxErrorBodyBytes = 2048

// ErrClientClosed is returned for requests issued after Close().
var ErrClientClosed = errors.New("hyperbridge: client is closed")

// NormalizedError is the single error type surfaced by the SDK. It is
// constructed when a failure is classified; the retry controller stamps
// Attempts on it before the error leaves the pipeline.
type NormalizedError struct {
	Kind       ErrorKind
	StatusCode int    // upstream status code, 0 if not applicable
	Message    string
	Body       []byte // snippet of the upstream body for diagnostics
	Attempts   int    // how many attempts were made before giving up
	cause      error
}

func (e *NormalizedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("hyperbridge: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("hyperbridge: %s: %s", e.Kind, e.Message)
}

func (e *NormalizedError) Unwrap() error {
	return e.cause
}

// Retryable reports whether the failure kind is safe to retry for an
// idempotent request.
func (e *NormalizedError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimited, KindUpstream5xx:
		return true
	}
	return false
}

// AsNormalizedError unwraps err into a *NormalizedError if possible.
func AsNormalizedError(err error) (*NormalizedError, bool) {
	var ne *NormalizedError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

func newError(kind ErrorKind, message string, cause error) *NormalizedError {
	return &NormalizedError{Kind: kind, Message: message, cause: cause}
}

func newTimeoutError(message string, cause error) *NormalizedError {
	return newError(KindTimeout, message, cause)
}

func newConnectionError(message string, cause error) *NormalizedError {
	return newError(KindConnection, message, cause)
}

func newRateLimitedError(message string, cause error) *NormalizedError {
	return newError(KindRateLimited, message, cause)
}

func newSerializationError(statusCode int, body []byte, cause error) *NormalizedError {
	return &NormalizedError{
		Kind:       KindSerialization,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("invalid response body: %v", cause),
		Body:       bodySnippet(body),
		cause:      cause,
	}
}

// newUpstreamError classifies a non-2xx upstream response.
func newUpstreamError(statusCode int, body []byte) *NormalizedError {
	kind := KindUpstream4xx
	switch {
	case statusCode == 429:
		kind = KindRateLimited
	case statusCode >= 500:
		kind = KindUpstream5xx
	}
	return &NormalizedError{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("upstream returned %d", statusCode),
		Body:       bodySnippet(body),
	}
}

func bodySnippet(body []byte) []byte {
	if len(body) <= maxErrorBodyBytes {
		return body
	}
	snippet := make([]byte, maxErrorBodyBytes)
	copy(snippet, body)
	return snippet
}
