package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/natsutil"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	opts := &natsserver.Options{Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

// chanWriter signals each save on a channel so async handlers can be awaited.
type chanWriter struct {
	ch  chan saveCall
	err error
}

func (w *chanWriter) SaveComments(_ context.Context, threadID string, comments []domain.FlatComment) error {
	if w.err != nil {
		return w.err
	}
	w.ch <- saveCall{threadID, comments}
	return nil
}

func TestConsumer_StoresRecord(t *testing.T) {
	nc := startTestNATS(t)

	ds := &chanWriter{ch: make(chan saveCall, 1)}
	sub, err := StartConsumer(nc, Deps{Dataset: ds, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := natsutil.Publish(context.Background(), nc, Subject, validComment("c1")); err != nil {
		t.Fatal(err)
	}

	select {
	case call := <-ds.ch:
		if call.threadID != "thread1" || len(call.comments) != 1 || call.comments[0].ID != "c1" {
			t.Fatalf("unexpected save: %+v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dataset write")
	}
}

func TestConsumer_DeadLettersAfterRetries(t *testing.T) {
	nc := startTestNATS(t)

	ds := &chanWriter{err: errors.New("locked")}
	sub, err := StartConsumer(nc, Deps{Dataset: ds, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	dlqCh := make(chan *nats.Msg, 1)
	dlqSub, err := nc.ChanSubscribe(DLQSubject, dlqCh)
	if err != nil {
		t.Fatal(err)
	}
	defer dlqSub.Unsubscribe()

	if err := natsutil.Publish(context.Background(), nc, Subject, validComment("c1")); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-dlqCh:
		var dlq dlqMessage
		if err := json.Unmarshal(msg.Data, &dlq); err != nil {
			t.Fatal(err)
		}
		if dlq.Retries != MaxRetries {
			t.Fatalf("expected %d retries, got %d", MaxRetries, dlq.Retries)
		}
		if dlq.Comment.ID != "c1" || dlq.Error == "" {
			t.Fatalf("unexpected DLQ payload: %+v", dlq)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for DLQ message")
	}
}

func TestConsumer_SkipsDuplicate(t *testing.T) {
	nc := startTestNATS(t)

	ds := &chanWriter{ch: make(chan saveCall, 2)}
	deps := Deps{
		Dataset: ds,
		DeduplicateF: func(_ context.Context, id string) (bool, error) {
			return id == "dup", nil
		},
		Logger: slog.New(slog.DiscardHandler),
	}
	sub, err := StartConsumer(nc, deps)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	ctx := context.Background()
	if err := natsutil.Publish(ctx, nc, Subject, validComment("dup")); err != nil {
		t.Fatal(err)
	}
	if err := natsutil.Publish(ctx, nc, Subject, validComment("kept")); err != nil {
		t.Fatal(err)
	}

	// A single subscription processes messages in order, so seeing the
	// second record proves the first was skipped.
	select {
	case call := <-ds.ch:
		if call.comments[0].ID != "kept" {
			t.Fatalf("duplicate reached the store: %+v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dataset write")
	}
}

type chanThreadWriter struct {
	ch chan domain.Thread
}

func (w *chanThreadWriter) SaveThread(_ context.Context, t domain.Thread) error {
	w.ch <- t
	return nil
}

func TestThreadConsumer_StoresThread(t *testing.T) {
	nc := startTestNATS(t)

	tw := &chanThreadWriter{ch: make(chan domain.Thread, 1)}
	sub, err := StartThreadConsumer(nc, slog.New(slog.DiscardHandler), tw)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	thread := domain.Thread{ID: "post1", Title: "release notes", Subreddit: "golang"}
	if err := natsutil.Publish(context.Background(), nc, ThreadSubject, thread); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-tw.ch:
		if got.ID != "post1" || got.Subreddit != "golang" {
			t.Fatalf("unexpected thread: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for thread store")
	}
}

func TestConsumer_IgnoresMalformedMessage(t *testing.T) {
	nc := startTestNATS(t)

	ds := &chanWriter{ch: make(chan saveCall, 1)}
	sub, err := StartConsumer(nc, Deps{Dataset: ds, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := nc.Publish(Subject, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	select {
	case call := <-ds.ch:
		t.Fatalf("malformed message reached the store: %+v", call)
	case <-time.After(200 * time.Millisecond):
	}
}
