package graph

import (
	"context"
)

// NodeCounts returns node counts grouped by label.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// RelationshipCounts returns relationship counts grouped by type.
func (g *GraphStore) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// TopCommenters returns the most active users by comment count.
func (g *GraphStore) TopCommenters(ctx context.Context, limit int) ([]CommenterStats, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (u:User)-[:WROTE]->(c:Comment)
		OPTIONAL MATCH (c)-[:IN_THREAD]->(t:Thread)
		RETURN u.name AS name, count(DISTINCT c) AS comments, count(DISTINCT t) AS threads
		ORDER BY comments DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var stats []CommenterStats
	for result.Next(ctx) {
		rec := result.Record()
		name, _ := rec.Get("name")
		comments, _ := rec.Get("comments")
		threads, _ := rec.Get("threads")
		s := CommenterStats{}
		if n, ok := name.(string); ok {
			s.Name = n
		}
		if c, ok := comments.(int64); ok {
			s.Comments = c
		}
		if t, ok := threads.(int64); ok {
			s.Threads = t
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// BusiestThreads returns the threads with the most archived comments.
func (g *GraphStore) BusiestThreads(ctx context.Context, limit int) ([]ThreadStats, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (t:Thread)
		OPTIONAL MATCH (c:Comment)-[:IN_THREAD]->(t)
		OPTIONAL MATCH (u:User)-[:WROTE]->(c)
		OPTIONAL MATCH (t)-[:POSTED_IN]->(s:Subreddit)
		RETURN t.id AS id, t.title AS title, head(collect(DISTINCT s.name)) AS subreddit,
		       count(DISTINCT c) AS comments, count(DISTINCT u) AS commenters
		ORDER BY comments DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var stats []ThreadStats
	for result.Next(ctx) {
		rec := result.Record()
		id, _ := rec.Get("id")
		title, _ := rec.Get("title")
		sub, _ := rec.Get("subreddit")
		comments, _ := rec.Get("comments")
		commenters, _ := rec.Get("commenters")
		s := ThreadStats{}
		if v, ok := id.(string); ok {
			s.ID = v
		}
		if v, ok := title.(string); ok {
			s.Title = v
		}
		if v, ok := sub.(string); ok {
			s.Subreddit = v
		}
		if v, ok := comments.(int64); ok {
			s.Comments = v
		}
		if v, ok := commenters.(int64); ok {
			s.Commenters = v
		}
		stats = append(stats, s)
	}
	return stats, nil
}
