// Package semantic embeds archived comment bodies and serves similarity
// search over them through Qdrant.
package semantic

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID        string            `json:"id"`
	Score     float32           `json:"score"`
	CommentID string            `json:"comment_id"`
	ThreadID  string            `json:"thread_id"`
	Author    string            `json:"author"`
	Permalink string            `json:"permalink"`
	Body      string            `json:"body"`
	Meta      map[string]string `json:"meta"`
}

// VectorRecord represents a single vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // comment_id, thread_id, author, score, permalink, body
}
