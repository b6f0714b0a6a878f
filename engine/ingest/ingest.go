// Package ingest routes harvested comments into the archive stores: the
// SQLite dataset, the Neo4j discussion graph, and the Qdrant semantic
// index. Records arrive one per NATS message from a live scraper, or in
// bulk from a JSON Lines replay.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/reddit"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/fn"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/natsutil"
)

const (
	// Subject is the NATS subject harvested comments arrive on.
	Subject = "harvest.comments"
	// ThreadSubject carries thread metadata alongside the comment stream.
	ThreadSubject = "harvest.threads"
	// DLQSubject receives records that exhausted their retries.
	DLQSubject = "harvest.comments.dlq"
	// MaxRetries before a record is dead-lettered.
	MaxRetries = 3
)

// DatasetWriter is the slice of the dataset store the archiver writes to.
type DatasetWriter interface {
	SaveComments(ctx context.Context, threadID string, comments []domain.FlatComment) error
}

// GraphWriter mirrors the graph store's comment write.
type GraphWriter interface {
	SaveComments(ctx context.Context, threadID string, comments []domain.FlatComment) error
}

// Indexer embeds comment bodies and upserts them as vector points.
type Indexer interface {
	IndexComments(ctx context.Context, threadID string, comments []domain.FlatComment) (int, error)
}

// ThreadWriter persists thread metadata.
type ThreadWriter interface {
	SaveThread(ctx context.Context, t domain.Thread) error
}

// Deps holds the stores the pipeline fans out to. Dataset is required;
// Graph and Index are skipped when nil.
type Deps struct {
	Dataset DatasetWriter
	Graph   GraphWriter
	Index   Indexer
	// DeduplicateF reports whether a comment id was already archived;
	// true skips the record.
	DeduplicateF func(ctx context.Context, commentID string) (bool, error)
	Logger       *slog.Logger
}

// Entry is one comment tagged with the thread it belongs to.
type Entry struct {
	ThreadID string
	Comment  domain.FlatComment
}

// --- Pipeline Stages ---

// Validate rejects records missing the fields the archive keys on.
var Validate fn.Stage[domain.FlatComment, domain.FlatComment] = func(_ context.Context, c domain.FlatComment) fn.Result[domain.FlatComment] {
	if err := domain.ValidateComment(c); err != nil {
		return fn.Err[domain.FlatComment](err)
	}
	return fn.Ok(c)
}

// Resolve derives the owning thread from the record's permalink.
var Resolve fn.Stage[domain.FlatComment, Entry] = func(_ context.Context, c domain.FlatComment) fn.Result[Entry] {
	threadID, err := reddit.ParsePostID(c.Permalink)
	if err != nil {
		return fn.Err[Entry](fmt.Errorf("resolve thread for %s: %w", c.ID, err))
	}
	return fn.Ok(Entry{ThreadID: threadID, Comment: c})
}

// NewStore creates the fan-out stage writing to every configured store.
// The dataset write comes first so a later store failure never leaves a
// comment searchable but unarchived.
func NewStore(deps Deps) fn.Stage[Entry, string] {
	return func(ctx context.Context, e Entry) fn.Result[string] {
		batch := []domain.FlatComment{e.Comment}
		if err := deps.Dataset.SaveComments(ctx, e.ThreadID, batch); err != nil {
			return fn.Err[string](fmt.Errorf("dataset save: %w", err))
		}
		if deps.Graph != nil {
			if err := deps.Graph.SaveComments(ctx, e.ThreadID, batch); err != nil {
				return fn.Err[string](fmt.Errorf("graph save: %w", err))
			}
		}
		if deps.Index != nil {
			if _, err := deps.Index.IndexComments(ctx, e.ThreadID, batch); err != nil {
				return fn.Err[string](fmt.Errorf("semantic index: %w", err))
			}
		}
		return fn.Ok(e.Comment.ID)
	}
}

// Timed wraps a stage with a named span and debug-level timing logs.
func Timed[In, Out any](name string, log *slog.Logger, s fn.Stage[In, Out]) fn.Stage[In, Out] {
	traced := fn.TracedStage(name, s)
	return func(ctx context.Context, in In) fn.Result[Out] {
		start := time.Now()
		r := traced(ctx, in)
		if r.IsErr() {
			_, err := r.Unwrap()
			log.Debug("stage failed", "stage", name, "duration", time.Since(start), "error", err)
		} else {
			log.Debug("stage done", "stage", name, "duration", time.Since(start))
		}
		return r
	}
}

// NewPipeline wires Validate → Resolve → Store for one record.
func NewPipeline(deps Deps) fn.Stage[domain.FlatComment, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := Timed("validate", log, Validate)
	resolved := fn.Then(validated, Timed("resolve", log, Resolve))
	return fn.Then(resolved, Timed("store", log, NewStore(deps)))
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Comment domain.FlatComment `json:"comment"`
	Error   string             `json:"error"`
	Retries int                `json:"retries"`
}

// StartConsumer subscribes to Subject and runs every record through the
// pipeline. A failed record is requeued with an incremented X-Retry-Count
// header and dead-lettered after MaxRetries so nothing is dropped silently.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var c domain.FlatComment
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			log.Error("archive: unmarshal failed", "error", err)
			return
		}

		ctx := natsutil.ExtractContext(msg)

		if deps.DeduplicateF != nil {
			exists, err := deps.DeduplicateF(ctx, c.ID)
			if err != nil {
				log.Warn("archive: dedup check failed", "error", err)
			} else if exists {
				log.Info("archive: skipping duplicate", "comment", c.ID)
				if msg.Reply != "" {
					_ = msg.Ack()
				}
				return
			}
		}

		// Get retry count from header.
		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, c)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("archive: pipeline failed",
				"error", pipeErr,
				"comment", c.ID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Comment: c, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("archive: DLQ publish failed", "error", err)
				}
			} else {
				// Re-publish with incremented retry count.
				retryMsg := nats.NewMsg(Subject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("archive: retry publish failed", "error", err)
				}
			}
		} else {
			id, _ := result.Unwrap()
			log.Info("archive: stored", "comment", id)
		}

		// Ack if JetStream.
		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}

// StartThreadConsumer stores thread metadata as the scraper publishes it.
// Thread rows are advisory; a store failure is logged, never retried, and
// never blocks the comment stream.
func StartThreadConsumer(nc *nats.Conn, log *slog.Logger, stores ...ThreadWriter) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	return natsutil.Subscribe(nc, ThreadSubject, func(ctx context.Context, t domain.Thread) {
		for _, st := range stores {
			if st == nil {
				continue
			}
			if err := st.SaveThread(ctx, t); err != nil {
				log.Warn("archive: thread save failed", "thread", t.ID, "error", err)
			}
		}
		log.Info("archive: thread stored", "thread", t.ID, "subreddit", t.Subreddit)
	})
}
