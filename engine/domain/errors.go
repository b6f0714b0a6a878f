package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying harvest failures. Wrappers below carry the
// context; match with errors.Is.
var (
	ErrMissingInput = errors.New("missing input: thread url is required")
	ErrTransport    = errors.New("transport failure")
	ErrMalformed    = errors.New("malformed response")
)

// TransportError reports a fetch that failed after all retry attempts.
type TransportError struct {
	URL      string
	Status   int
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: status=%d attempts=%d: %v", e.URL, e.Status, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// MalformedError reports a response body that decoded but had the wrong shape,
// or failed to decode at all. Malformed bodies are never retried.
type MalformedError struct {
	URL    string
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed response: %s: %s", e.URL, e.Reason)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
