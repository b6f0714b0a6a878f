// Package sink delivers flat comment records to their destinations.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
)

// DefaultFlushEvery is the buffered sink's batch size.
const DefaultFlushEvery = 20

// Sink receives batches of records. A record accepted by Append must be
// durable once Close returns nil; Close flushes anything still buffered.
type Sink interface {
	Append(ctx context.Context, records []domain.FlatComment) error
	Close() error
}

// JSONL writes one compact JSON object per line.
type JSONL struct {
	enc *json.Encoder
}

// NewJSONL wraps w. The caller keeps ownership of w and closes it after
// the sink is closed.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(w)}
}

func (s *JSONL) Append(_ context.Context, records []domain.FlatComment) error {
	for _, r := range records {
		if err := s.enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *JSONL) Close() error { return nil }

// Buffered wraps a sink and forwards records in fixed-size batches.
// The remainder is flushed on Close.
type Buffered struct {
	inner Sink
	every int
	buf   []domain.FlatComment
}

// NewBuffered creates a Buffered flushing every n records; n <= 0 means
// DefaultFlushEvery.
func NewBuffered(inner Sink, n int) *Buffered {
	if n <= 0 {
		n = DefaultFlushEvery
	}
	return &Buffered{inner: inner, every: n}
}

func (b *Buffered) Append(ctx context.Context, records []domain.FlatComment) error {
	b.buf = append(b.buf, records...)
	for len(b.buf) >= b.every {
		if err := b.flush(ctx, b.every); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the buffer into the inner sink, then closes it.
func (b *Buffered) Close() error {
	flushErr := b.flush(context.Background(), len(b.buf))
	return errors.Join(flushErr, b.inner.Close())
}

func (b *Buffered) flush(ctx context.Context, n int) error {
	if n == 0 {
		return nil
	}
	if err := b.inner.Append(ctx, b.buf[:n]); err != nil {
		return err
	}
	b.buf = b.buf[n:]
	return nil
}

// Multi fans records out to several sinks.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Append(ctx context.Context, records []domain.FlatComment) error {
	for _, s := range m.sinks {
		if err := s.Append(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
