// Package domain defines core types, the error taxonomy, and input handling
// for the harvester pipeline. It acts as the validation gate at pipeline
// entry points.
package domain

import (
	"strings"
	"time"
)

// FlatComment is a single comment lifted out of the nested thread tree.
// ParentID is nil for records that root their document, whether a top-level
// comment under the post or the focused comment of a mid-thread permalink;
// Author is nil when the source omits the author entirely. The literal
// "[deleted]" author is preserved as-is.
type FlatComment struct {
	ID         string  `json:"id"`
	Author     *string `json:"author"`
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	ParentID   *string `json:"parent_id"`
	Permalink  string  `json:"permalink"`
}

// AuthorName returns the author, or the empty string when unknown.
func (c FlatComment) AuthorName() string {
	if c.Author == nil {
		return ""
	}
	return *c.Author
}

// ValidateComment checks the fields the archive keys on. The id names the
// record; the permalink is what thread membership is derived from.
func ValidateComment(c FlatComment) error {
	if strings.TrimSpace(c.ID) == "" {
		return NewValidationError("id", c.ID, ErrMalformed)
	}
	if strings.TrimSpace(c.Permalink) == "" {
		return NewValidationError("permalink", c.Permalink, ErrMalformed)
	}
	return nil
}

// CreatedAt converts the epoch timestamp to UTC time.
func (c FlatComment) CreatedAt() time.Time {
	return time.Unix(int64(c.CreatedUTC), 0).UTC()
}

// Thread is the post a comment forest hangs off.
type Thread struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// CreatedAt converts the epoch timestamp to UTC time.
func (t Thread) CreatedAt() time.Time {
	return time.Unix(int64(t.CreatedUTC), 0).UTC()
}
