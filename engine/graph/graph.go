package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/mentions"
)

// GraphStore writes archived threads and comments into Neo4j.
type GraphStore struct {
	opener SessionOpener
}

// New creates a GraphStore backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{opener: &driverOpener{driver: driver}}
}

// NewWithOpener creates a GraphStore with a custom session opener.
func NewWithOpener(opener SessionOpener) *GraphStore {
	return &GraphStore{opener: opener}
}

// SaveThread creates or updates a Thread node and links it to its
// subreddit and author.
func (g *GraphStore) SaveThread(ctx context.Context, t domain.Thread) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (t:Thread {id: $id})
	           SET t.title = $title, t.permalink = $permalink, t.url = $url,
	               t.score = $score, t.num_comments = $numComments, t.created_utc = $createdUTC`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"permalink":   t.Permalink,
		"url":         t.URL,
		"score":       t.Score,
		"numComments": t.NumComments,
		"createdUTC":  t.CreatedUTC,
	})
	if err != nil {
		return err
	}

	if t.Subreddit != "" {
		cypher = `MATCH (t:Thread {id: $id})
		          MERGE (s:Subreddit {name: $name})
		          MERGE (t)-[:POSTED_IN]->(s)`
		if _, err := sess.Run(ctx, cypher, map[string]any{
			"id": t.ID, "name": strings.ToLower(t.Subreddit),
		}); err != nil {
			return err
		}
	}

	if name := graphUserName(t.Author); name != "" {
		cypher = `MATCH (t:Thread {id: $id})
		          MERGE (u:User {name: $name})
		          MERGE (u)-[:WROTE]->(t)`
		if _, err := sess.Run(ctx, cypher, map[string]any{
			"id": t.ID, "name": name,
		}); err != nil {
			return err
		}
	}
	return nil
}

// SaveComments writes a batch of comments in a single transaction. The
// thread node and any parent comment nodes are merged as stubs so that
// batches may arrive in any order.
func (g *GraphStore) SaveComments(ctx context.Context, threadID string, comments []domain.FlatComment) error {
	if len(comments) == 0 {
		return nil
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, c := range comments {
			cypher := `MERGE (c:Comment {id: $id})
			           SET c.body = $body, c.score = $score, c.created_utc = $createdUTC, c.permalink = $permalink
			           WITH c
			           MERGE (t:Thread {id: $threadID})
			           MERGE (c)-[:IN_THREAD]->(t)`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id":         c.ID,
				"body":       c.Body,
				"score":      c.Score,
				"createdUTC": c.CreatedUTC,
				"permalink":  c.Permalink,
				"threadID":   threadID,
			}); err != nil {
				return nil, err
			}

			if c.ParentID != nil {
				cypher = `MATCH (c:Comment {id: $id})
				          MERGE (p:Comment {id: $parentID})
				          MERGE (c)-[:REPLY_TO]->(p)`
				if _, err := tx.Run(ctx, cypher, map[string]any{
					"id": c.ID, "parentID": *c.ParentID,
				}); err != nil {
					return nil, err
				}
			}

			if name := graphUserName(c.AuthorName()); name != "" {
				cypher = `MATCH (c:Comment {id: $id})
				          MERGE (u:User {name: $name})
				          MERGE (u)-[:WROTE]->(c)`
				if _, err := tx.Run(ctx, cypher, map[string]any{
					"id": c.ID, "name": name,
				}); err != nil {
					return nil, err
				}
			}

			for _, m := range mentions.Extract(c.Body) {
				label := "User"
				if m.Kind == mentions.KindSubreddit {
					label = "Subreddit"
				}
				cypher = fmt.Sprintf(`MATCH (c:Comment {id: $id})
				          MERGE (n:%s {name: $name})
				          MERGE (c)-[:MENTIONS]->(n)`, label)
				if _, err := tx.Run(ctx, cypher, map[string]any{
					"id": c.ID, "name": m.Name,
				}); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	return err
}

// RepliesOf returns the direct replies to a comment, oldest first.
func (g *GraphStore) RepliesOf(ctx context.Context, commentID string) ([]CommentNode, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (r:Comment)-[:REPLY_TO]->(c:Comment {id: $id})
	           RETURN r ORDER BY r.created_utc`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": commentID})
	if err != nil {
		return nil, err
	}
	return collectComments(ctx, result)
}

// AncestryOf returns the chain of parent comments above a comment,
// nearest parent first. A top-level comment has an empty ancestry.
func (g *GraphStore) AncestryOf(ctx context.Context, commentID string) ([]CommentNode, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH p = (c:Comment {id: $id})-[:REPLY_TO*]->(root:Comment)
	           WHERE NOT (root)-[:REPLY_TO]->()
	           RETURN tail(nodes(p)) AS nodes`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": commentID})
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		return nil, nil
	}

	nodesVal, ok := result.Record().Get("nodes")
	if !ok {
		return nil, fmt.Errorf("no nodes in ancestry result")
	}
	nodeList, ok := nodesVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected nodes type")
	}

	var chain []CommentNode
	for _, raw := range nodeList {
		node, ok := raw.(dbtype.Node)
		if !ok {
			continue
		}
		chain = append(chain, commentFromProps(node.Props))
	}
	return chain, nil
}

// collectComments reads all Comment nodes from a result set.
func collectComments(ctx context.Context, result CypherResult) ([]CommentNode, error) {
	var items []CommentNode
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "r")
		if err != nil {
			return nil, err
		}
		items = append(items, commentFromProps(node.Props))
	}
	return items, nil
}

// commentFromProps constructs a CommentNode from Neo4j node properties.
func commentFromProps(props map[string]any) CommentNode {
	return CommentNode{
		ID:         strProp(props, "id"),
		Body:       strProp(props, "body"),
		Score:      int64Prop(props, "score"),
		CreatedUTC: floatProp(props, "created_utc"),
		Permalink:  strProp(props, "permalink"),
	}
}

// graphUserName normalizes an author for use as a User node identity.
// Deleted accounts all surface as the literal "[deleted]" and would
// collapse into one meaningless node, so they get no User node at all.
func graphUserName(author string) string {
	if author == "" || author == "[deleted]" {
		return ""
	}
	return strings.ToLower(author)
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func int64Prop(props map[string]any, key string) int64 {
	if v, ok := props[key].(int64); ok {
		return v
	}
	return 0
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}
