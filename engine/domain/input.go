package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxComments applies when the caller supplies no cap at all.
const DefaultMaxComments = 20

// Unbounded is the effective ceiling for "no cap".
const Unbounded = 1<<31 - 1

// Input is the harvest request. MaxComments is left loosely typed on purpose:
// callers hand over numbers, numeric strings, or nothing, and ResultCap
// coerces whatever arrived.
type Input struct {
	URL         string   `json:"url"`
	MaxComments any      `json:"maxComments"`
	Proxies     []string `json:"proxies"`
}

// ParseInput decodes an input document. Unknown fields are ignored.
func ParseInput(data []byte) (Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("parse input: %w", err)
	}
	return in, nil
}

// Validate checks the input before any network call is attempted.
func (in Input) Validate() error {
	if strings.TrimSpace(in.URL) == "" {
		return NewValidationError("url", in.URL, ErrMissingInput)
	}
	return nil
}

// Cap returns the coerced result cap for this input.
func (in Input) Cap() int {
	return ResultCap(in.MaxComments)
}

// ResultCap coerces a loosely typed cap value. Numbers and numeric strings
// are floored at 1; nil and anything non-numeric mean unbounded.
func ResultCap(v any) int {
	switch n := v.(type) {
	case nil:
		return Unbounded
	case int:
		return clampCap(n)
	case int64:
		return clampCap(int(n))
	case float64:
		return clampCap(int(n))
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return clampCap(int(f))
		}
		return Unbounded
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return Unbounded
		}
		if i, err := strconv.Atoi(s); err == nil {
			return clampCap(i)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return clampCap(int(f))
		}
		return Unbounded
	default:
		return Unbounded
	}
}

func clampCap(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
