package dataset

import (
	"context"
	"database/sql"
	"time"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
)

// Run records one harvest or replay that fed the archive.
type Run struct {
	ID            string    `json:"id"`
	ThreadID      string    `json:"thread_id,omitempty"`
	Source        string    `json:"source,omitempty"`
	Comments      int       `json:"comments"`
	Batches       int       `json:"batches"`
	BatchFailures int       `json:"batch_failures"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// SaveThread upserts the thread row.
func (s *Store) SaveThread(ctx context.Context, t domain.Thread) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO threads
		(id, title, subreddit, author, permalink, url, score, num_comments, created_utc, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, nullStr(t.Title), nullStr(t.Subreddit), nullStr(t.Author),
		nullStr(t.Permalink), nullStr(t.URL), t.Score, t.NumComments,
		t.CreatedUTC, time.Now().Unix())
	return err
}

// SaveComments upserts a batch of comments for a thread in one transaction.
// Re-archiving the same ids is idempotent.
func (s *Store) SaveComments(ctx context.Context, threadID string, comments []domain.FlatComment) error {
	if len(comments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, c := range comments {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO comments
			(id, thread_id, author, body, score, created_utc, parent_id, permalink, archived_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, nullStr(threadID), nullPtr(c.Author), c.Body, c.Score,
			c.CreatedUTC, nullPtr(c.ParentID), nullStr(c.Permalink), now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveRun records a run summary.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, thread_id, source, comments, batches, batch_failures, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, nullStr(r.ThreadID), nullStr(r.Source), r.Comments, r.Batches,
		r.BatchFailures, r.StartedAt.Unix(), r.FinishedAt.Unix())
	return err
}

// GetThread returns the thread row, or nil when it was never archived.
func (s *Store) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, subreddit, author, permalink,
		url, score, num_comments, created_utc FROM threads WHERE id = ?`, id)

	var t domain.Thread
	var title, subreddit, author, permalink, url sql.NullString
	err := row.Scan(&t.ID, &title, &subreddit, &author, &permalink, &url,
		&t.Score, &t.NumComments, &t.CreatedUTC)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Title = title.String
	t.Subreddit = subreddit.String
	t.Author = author.String
	t.Permalink = permalink.String
	t.URL = url.String
	return &t, nil
}

// Threads lists the most recently archived threads.
func (s *Store) Threads(ctx context.Context, limit int) ([]domain.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, subreddit, author, permalink,
		url, score, num_comments, created_utc FROM threads
		ORDER BY archived_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Thread
	for rows.Next() {
		var t domain.Thread
		var title, subreddit, author, permalink, url sql.NullString
		if err := rows.Scan(&t.ID, &title, &subreddit, &author, &permalink, &url,
			&t.Score, &t.NumComments, &t.CreatedUTC); err != nil {
			return nil, err
		}
		t.Title = title.String
		t.Subreddit = subreddit.String
		t.Author = author.String
		t.Permalink = permalink.String
		t.URL = url.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// CommentsByThread returns a thread's comments in archive order.
func (s *Store) CommentsByThread(ctx context.Context, threadID string, limit, offset int) ([]domain.FlatComment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, author, body, score, created_utc,
		parent_id, permalink FROM comments WHERE thread_id = ?
		ORDER BY rowid LIMIT ? OFFSET ?`, threadID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FlatComment
	for rows.Next() {
		var c domain.FlatComment
		var author, parent, permalink sql.NullString
		if err := rows.Scan(&c.ID, &author, &c.Body, &c.Score, &c.CreatedUTC,
			&parent, &permalink); err != nil {
			return nil, err
		}
		c.Author = ptrOf(author)
		c.ParentID = ptrOf(parent)
		c.Permalink = permalink.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountComments counts a thread's archived comments.
func (s *Store) CountComments(ctx context.Context, threadID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE thread_id = ?`, threadID).Scan(&n)
	return n, err
}

// HasComment reports whether a comment id is already archived. The archive
// consumer uses this as its dedup check.
func (s *Store) HasComment(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// Runs lists the most recent run summaries.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, thread_id, source, comments,
		batches, batch_failures, started_at, finished_at FROM runs
		ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var threadID, source sql.NullString
		var started, finished int64
		if err := rows.Scan(&r.ID, &threadID, &source, &r.Comments, &r.Batches,
			&r.BatchFailures, &started, &finished); err != nil {
			return nil, err
		}
		r.ThreadID = threadID.String
		r.Source = source.String
		r.StartedAt = time.Unix(started, 0).UTC()
		r.FinishedAt = time.Unix(finished, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
