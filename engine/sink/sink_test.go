package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
)

func record(id string) domain.FlatComment {
	author := "user_" + id
	return domain.FlatComment{
		ID:         id,
		Author:     &author,
		Body:       "body " + id,
		Score:      1,
		CreatedUTC: 1700000000,
		Permalink:  "/r/golang/comments/p/t/" + id + "/",
	}
}

func TestJSONL_OneCompactObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONL(&buf)

	parent := "a"
	anon := domain.FlatComment{ID: "b", Body: "x", ParentID: &parent}
	if err := s.Append(context.Background(), []domain.FlatComment{record("a"), anon}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	for _, l := range lines {
		if strings.Contains(l, "\n") || strings.Contains(l, "  ") {
			t.Errorf("line not compact: %q", l)
		}
	}

	for _, field := range []string{`"id"`, `"author"`, `"body"`, `"score"`, `"created_utc"`, `"parent_id"`, `"permalink"`} {
		if !strings.Contains(lines[0], field) {
			t.Errorf("line missing field %s: %s", field, lines[0])
		}
	}
	if !strings.Contains(lines[0], `"parent_id":null`) {
		t.Errorf("top-level parent should serialize as null: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"author":null`) {
		t.Errorf("unknown author should serialize as null: %s", lines[1])
	}
	if !strings.Contains(lines[1], `"parent_id":"a"`) {
		t.Errorf("reply should carry its parent id: %s", lines[1])
	}
}

// recording counts batches handed to it.
type recording struct {
	batches [][]domain.FlatComment
	closed  bool
	failOn  int // 1-based batch index to fail at, 0 = never
}

func (r *recording) Append(_ context.Context, records []domain.FlatComment) error {
	if r.failOn > 0 && len(r.batches)+1 == r.failOn {
		return errors.New("sink full")
	}
	batch := make([]domain.FlatComment, len(records))
	copy(batch, records)
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recording) Close() error {
	r.closed = true
	return nil
}

func (r *recording) total() int {
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestBuffered_FlushesEveryN(t *testing.T) {
	inner := &recording{}
	b := NewBuffered(inner, 20)

	ctx := context.Background()
	for i := 0; i < 45; i++ {
		if err := b.Append(ctx, []domain.FlatComment{record(fmt.Sprintf("c%02d", i))}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if len(inner.batches) != 2 || len(inner.batches[0]) != 20 || len(inner.batches[1]) != 20 {
		t.Fatalf("expected two batches of 20 before close, got %d batches", len(inner.batches))
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if inner.total() != 45 {
		t.Errorf("lost records: inner saw %d of 45", inner.total())
	}
	if len(inner.batches) != 3 || len(inner.batches[2]) != 5 {
		t.Errorf("remainder batch wrong: %d batches", len(inner.batches))
	}
	if !inner.closed {
		t.Error("inner sink should be closed")
	}

	// Order preserved end to end.
	if inner.batches[0][0].ID != "c00" || inner.batches[2][4].ID != "c44" {
		t.Error("record order broken")
	}
}

func TestBuffered_LargeAppendSplits(t *testing.T) {
	inner := &recording{}
	b := NewBuffered(inner, 10)

	records := make([]domain.FlatComment, 25)
	for i := range records {
		records[i] = record(fmt.Sprintf("c%02d", i))
	}
	if err := b.Append(context.Background(), records); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(inner.batches) != 2 {
		t.Fatalf("expected 2 full batches immediately, got %d", len(inner.batches))
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if inner.total() != 25 {
		t.Errorf("inner saw %d of 25", inner.total())
	}
}

func TestBuffered_DefaultSize(t *testing.T) {
	inner := &recording{}
	b := NewBuffered(inner, 0)
	if b.every != DefaultFlushEvery {
		t.Errorf("default flush size = %d, want %d", b.every, DefaultFlushEvery)
	}
}

func TestBuffered_AppendErrorPropagates(t *testing.T) {
	inner := &recording{failOn: 1}
	b := NewBuffered(inner, 2)

	err := b.Append(context.Background(), []domain.FlatComment{record("a"), record("b")})
	if err == nil {
		t.Fatal("expected inner error to propagate")
	}
}

func TestMulti(t *testing.T) {
	first := &recording{}
	second := &recording{}
	m := NewMulti(first, second)

	if err := m.Append(context.Background(), []domain.FlatComment{record("a")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.total() != 1 || second.total() != 1 {
		t.Error("both sinks should receive the batch")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !first.closed || !second.closed {
		t.Error("both sinks should be closed")
	}
}
