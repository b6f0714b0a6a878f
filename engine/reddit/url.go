// Package reddit speaks Reddit's public JSON API: endpoint construction,
// wire shapes, comment-tree flattening, and a polite HTTP/1.1 client.
package reddit

import (
	"fmt"
	"regexp"
	"strings"
)

// BaseURL is the public Reddit endpoint root.
const BaseURL = "https://www.reddit.com"

// MaxMoreBatch is the endpoint's ceiling on ids per continuation request.
const MaxMoreBatch = 100

var postIDPattern = regexp.MustCompile(`/comments/([a-z0-9]+)`)

// ThreadJSONURL turns a thread URL into its JSON endpoint: query and
// fragment dropped, exactly one trailing slash, then ".json".
//
//	https://www.reddit.com/r/golang/comments/abc/  -> https://www.reddit.com/r/golang/comments/abc/.json
//	https://www.reddit.com/r/golang/comments/abc   -> https://www.reddit.com/r/golang/comments/abc/.json
func ThreadJSONURL(threadURL string) string {
	s := threadURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "/") + "/.json"
}

// ParsePostID extracts the base36 post id from the /comments/<id> path segment.
func ParsePostID(threadURL string) (string, error) {
	m := postIDPattern.FindStringSubmatch(threadURL)
	if m == nil {
		return "", fmt.Errorf("no post id in %q", threadURL)
	}
	return m[1], nil
}

// PostFullname returns the t3_ fullname for a post id.
func PostFullname(id string) string { return "t3_" + id }

// MoreChildrenURL builds the continuation endpoint URL for one batch of ids.
func MoreChildrenURL(base, postID string, ids []string) string {
	return fmt.Sprintf("%s/api/morechildren.json?api_type=json&link_id=%s&children=%s&limit_children=false",
		base, PostFullname(postID), strings.Join(ids, ","))
}
