// Package graph projects archived Reddit threads into a Neo4j graph of
// threads, comments, users and subreddits.
//
// Node labels: Thread, Comment, User, Subreddit. Relationships:
// (Comment)-[:IN_THREAD]->(Thread), (Comment)-[:REPLY_TO]->(Comment),
// (User)-[:WROTE]->(Thread|Comment), (Thread)-[:POSTED_IN]->(Subreddit)
// and (Comment)-[:MENTIONS]->(User|Subreddit) for u/ and r/ references
// found in comment bodies. User and Subreddit names are lowercased so
// that authorship and mentions converge on the same node.
package graph

// CommentNode is a comment as projected into the graph.
type CommentNode struct {
	ID         string  `json:"id"`
	Body       string  `json:"body"`
	Score      int64   `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Permalink  string  `json:"permalink"`
}

// CommenterStats holds per-user activity numbers.
type CommenterStats struct {
	Name     string `json:"name"`
	Comments int64  `json:"comments"`
	Threads  int64  `json:"threads"`
}

// ThreadStats holds per-thread activity numbers.
type ThreadStats struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Subreddit  string `json:"subreddit"`
	Comments   int64  `json:"comments"`
	Commenters int64  `json:"commenters"`
}
