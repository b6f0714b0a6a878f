package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTransportError_Matching(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&TransportError{URL: "https://www.reddit.com/x/.json", Status: 503, Attempts: 3, Err: cause})

	if !errors.Is(err, ErrTransport) {
		t.Error("expected errors.Is(err, ErrTransport)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via Unwrap")
	}
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Attempts != 3 || terr.Status != 503 {
		t.Errorf("expected TransportError with context, got %v", err)
	}
	if !strings.Contains(err.Error(), "attempts=3") {
		t.Errorf("message should carry attempt count: %s", err)
	}
}

func TestMalformedError_Matching(t *testing.T) {
	err := error(&MalformedError{URL: "https://www.reddit.com/x/.json", Reason: "expected 2 listings, got 1"})

	if !errors.Is(err, ErrMalformed) {
		t.Error("expected errors.Is(err, ErrMalformed)")
	}
	if errors.Is(err, ErrTransport) {
		t.Error("malformed must not match transport")
	}
	if !strings.Contains(err.Error(), "expected 2 listings") {
		t.Errorf("message should carry reason: %s", err)
	}
}

func TestMalformedError_WithCause(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := error(&MalformedError{URL: "u", Reason: "decode", Err: cause})
	if !errors.Is(err, cause) {
		t.Error("expected decode cause to unwrap")
	}
	if !strings.Contains(err.Error(), cause.Error()) {
		t.Errorf("message should include cause: %s", err)
	}
}

func TestValidationError_Wraps(t *testing.T) {
	err := fmt.Errorf("run: %w", NewValidationError("url", "", ErrMissingInput))
	if !errors.Is(err, ErrMissingInput) {
		t.Error("expected wrapped sentinel to match")
	}
}
