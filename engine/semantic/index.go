package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/fn"
)

// DefaultEmbedBatch is the max comment bodies per embedding request.
const DefaultEmbedBatch = 100

// Embedder turns a batch of texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Upserter is the slice of VectorStore the indexer writes through.
type Upserter interface {
	Upsert(ctx context.Context, records []VectorRecord) error
}

// Indexer embeds comment bodies and stores one vector per comment.
type Indexer struct {
	store  Upserter
	embed  Embedder
	batch  int
	logger *slog.Logger
}

// NewIndexer creates an Indexer with the default embed batch size.
func NewIndexer(store Upserter, embed Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, embed: embed, batch: DefaultEmbedBatch, logger: logger}
}

// PointID derives a stable UUID for a comment so re-indexing a thread
// overwrites points instead of duplicating them.
func PointID(commentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("comment-"+commentID)).String()
}

// IndexComments embeds eligible comment bodies and upserts them. Returns
// the number of comments indexed.
func (ix *Indexer) IndexComments(ctx context.Context, threadID string, comments []domain.FlatComment) (int, error) {
	eligible := fn.Filter(comments, indexable)
	if len(eligible) == 0 {
		return 0, nil
	}

	indexed := 0
	for _, batch := range fn.Chunk(eligible, ix.batch) {
		texts := fn.Map(batch, func(c domain.FlatComment) string { return c.Body })
		vectors, err := ix.embed.EmbedBatch(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("semantic: embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return indexed, fmt.Errorf("semantic: got %d embeddings for %d comments", len(vectors), len(batch))
		}

		records := make([]VectorRecord, len(batch))
		for i, c := range batch {
			records[i] = VectorRecord{
				ID:        PointID(c.ID),
				Embedding: vectors[i],
				Payload: map[string]any{
					"comment_id": c.ID,
					"thread_id":  threadID,
					"author":     c.AuthorName(),
					"score":      c.Score,
					"permalink":  c.Permalink,
					"body":       c.Body,
				},
			}
		}
		if err := ix.store.Upsert(ctx, records); err != nil {
			return indexed, err
		}
		indexed += len(records)
	}

	ix.logger.Info("semantic: indexed", "thread_id", threadID, "count", indexed, "skipped", len(comments)-len(eligible))
	return indexed, nil
}

// indexable filters out comments whose bodies carry no searchable text.
func indexable(c domain.FlatComment) bool {
	body := strings.TrimSpace(c.Body)
	return body != "" && body != "[removed]" && body != "[deleted]"
}
