package explorer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported indicates the provider has no endpoint for the
	// requested capability on this chain or token kind. Callers must treat
	// it as "no data available", never as a transient fetch failure.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrNotFound indicates the provider answered HTTP 404, meaning "no
	// results for this query". It is distinct from a decode failure.
	ErrNotFound = errors.New("no results found")

	// ErrDecodeFailed is the sentinel matched by errors.Is for any
	// DecodeError returned by an adapter.
	ErrDecodeFailed = errors.New("provider payload decode failed")

	// ErrRequestFailed is the sentinel matched by errors.Is for any
	// RequestError returned by an adapter.
	ErrRequestFailed = errors.New("provider request failed")
)

// DecodeError reports a malformed provider payload. It carries a snippet
// of the offending body for diagnostics.
type DecodeError struct {
	Payload []byte // offending response body (possibly truncated)
	cause   error  // underlying unmarshal error
}

// maxPayloadSnippet bounds how much of a bad payload is retained.
const maxPayloadSnippet = 512

// NewDecodeError wraps an unmarshal failure together with the payload that
// caused it, truncated to a diagnostic-sized snippet.
func NewDecodeError(payload []byte, cause error) *DecodeError {
	if len(payload) > maxPayloadSnippet {
		payload = payload[:maxPayloadSnippet]
	}

	return &DecodeError{Payload: payload, cause: cause}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %v: payload %q", ErrDecodeFailed, e.cause, e.Payload)
}

// Unwrap exposes the underlying unmarshal error.
func (e *DecodeError) Unwrap() error {
	return e.cause
}

// Is matches the ErrDecodeFailed sentinel.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecodeFailed
}

// RequestError reports a non-success HTTP status from a provider.
// Adapters map status 404 to ErrNotFound instead of a RequestError.
type RequestError struct {
	Status int // HTTP status code returned by the provider
}

// NewRequestError builds a RequestError for the given HTTP status.
func NewRequestError(status int) *RequestError {
	return &RequestError{Status: status}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%v: status %d", ErrRequestFailed, e.Status)
}

// Is matches the ErrRequestFailed sentinel.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}
