// Package harvest orchestrates a single thread download: fetch the document,
// flatten the comment tree, resolve "more" placeholders batch by batch, and
// hand every record to the output sink. All requests run strictly one at a
// time.
package harvest

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/reddit"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/sink"
)

// DefaultMaxBatches caps continuation rounds per run.
const DefaultMaxBatches = 50

// Fetcher is the slice of the reddit client the harvester needs.
type Fetcher interface {
	FetchThread(ctx context.Context, threadURL string) (domain.Thread, []reddit.Thing, error)
	FetchMore(ctx context.Context, postID string, ids []string) ([]reddit.Thing, error)
}

// ThreadSink receives the thread document once, right after the primary
// fetch. Comments are the payload; a thread sink failure is logged and
// tolerated.
type ThreadSink interface {
	SaveThread(ctx context.Context, t domain.Thread) error
}

// Stats summarizes one harvest run.
type Stats struct {
	ThreadID      string        `json:"thread_id"`
	URL           string        `json:"url"`
	Comments      int           `json:"comments"`
	Placeholders  int           `json:"placeholders"`
	Batches       int           `json:"batches"`
	BatchFailures int           `json:"batch_failures"`
	CapHit        bool          `json:"cap_hit"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Options tune a Harvester. Zero values get sensible defaults.
type Options struct {
	Logger *slog.Logger
	// Limiter paces continuation requests. Defaults to 1/s.
	Limiter    *rate.Limiter
	MaxBatches int
	// Threads, when set, receives the thread document.
	Threads ThreadSink
}

// Harvester drives one thread end to end.
type Harvester struct {
	fetch      Fetcher
	out        sink.Sink
	threads    ThreadSink
	log        *slog.Logger
	limiter    *rate.Limiter
	maxBatches int
}

// New creates a Harvester writing to out.
func New(fetch Fetcher, out sink.Sink, opts Options) *Harvester {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	if opts.MaxBatches <= 0 {
		opts.MaxBatches = DefaultMaxBatches
	}
	return &Harvester{
		fetch:      fetch,
		out:        out,
		threads:    opts.Threads,
		log:        opts.Logger,
		limiter:    opts.Limiter,
		maxBatches: opts.MaxBatches,
	}
}

// Run harvests one thread. The primary fetch is fatal on failure;
// continuation batches are logged and skipped when they fail. Every record
// that reaches the sink is counted in Stats.Comments.
func (h *Harvester) Run(ctx context.Context, in domain.Input) (Stats, error) {
	start := time.Now()
	stats := Stats{URL: in.URL}

	if err := in.Validate(); err != nil {
		return stats, err
	}
	capN := in.Cap()

	thread, forest, err := h.fetch.FetchThread(ctx, in.URL)
	if err != nil {
		return stats, err
	}

	postID := thread.ID
	if postID == "" {
		if postID, err = reddit.ParsePostID(in.URL); err != nil {
			h.log.Warn("no post id, placeholders cannot be resolved", "url", in.URL)
		}
	}
	stats.ThreadID = postID

	if h.threads != nil {
		if err := h.threads.SaveThread(ctx, thread); err != nil {
			h.log.Warn("thread sink failed", "thread", postID, "error", err)
		}
	}

	records, placeholderIDs := reddit.Flatten(forest)
	h.log.Info("thread fetched",
		"thread", postID, "comments", len(records), "placeholders", len(placeholderIDs))

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[r.ID] = true
	}

	emitted := 0
	emit := func(batch []domain.FlatComment) error {
		if emitted >= capN {
			return nil
		}
		if emitted+len(batch) > capN {
			batch = batch[:capN-emitted]
			stats.CapHit = true
		}
		if len(batch) == 0 {
			return nil
		}
		if err := h.out.Append(ctx, batch); err != nil {
			return err
		}
		emitted += len(batch)
		return nil
	}

	if err := emit(records); err != nil {
		stats.Comments = emitted
		return stats, err
	}

	// Continuation queue: FIFO so resolution order is stable, with a
	// queued set so no id is requested twice.
	var pending []string
	queued := make(map[string]bool)
	enqueue := func(ids []string) {
		for _, id := range ids {
			if !seen[id] && !queued[id] {
				queued[id] = true
				pending = append(pending, id)
			}
		}
	}
	enqueue(placeholderIDs)
	stats.Placeholders = len(pending)

	for round := 0; len(pending) > 0 && emitted < capN && postID != ""; round++ {
		if round >= h.maxBatches {
			h.log.Warn("batch ceiling reached, placeholders left unresolved",
				"thread", postID, "remaining", len(pending))
			break
		}

		n := len(pending)
		if n > reddit.MaxMoreBatch {
			n = reddit.MaxMoreBatch
		}
		batch := pending[:n]
		pending = pending[n:]

		if err := h.limiter.Wait(ctx); err != nil {
			stats.Comments = emitted
			return stats, err
		}

		things, err := h.fetch.FetchMore(ctx, postID, batch)
		stats.Batches++
		if err != nil {
			// Tolerated: log, skip the batch, keep going.
			stats.BatchFailures++
			h.log.Warn("continuation batch failed, skipping",
				"thread", postID, "batch", stats.Batches, "ids", len(batch), "error", err)
			continue
		}

		more, nested := reddit.FlattenMore(things)
		var fresh []domain.FlatComment
		for _, r := range more {
			if !seen[r.ID] {
				seen[r.ID] = true
				fresh = append(fresh, r)
			}
		}
		before := len(pending)
		enqueue(nested)
		stats.Placeholders += len(pending) - before

		if err := emit(fresh); err != nil {
			stats.Comments = emitted
			return stats, err
		}
	}

	stats.Comments = emitted
	stats.Elapsed = time.Since(start)
	h.log.Info("harvest complete",
		"thread", postID,
		"comments", stats.Comments,
		"batches", stats.Batches,
		"batch_failures", stats.BatchFailures,
		"cap_hit", stats.CapHit,
		"elapsed", stats.Elapsed.Round(time.Millisecond))
	return stats, nil
}
