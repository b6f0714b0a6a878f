// Package mentions extracts u/username and r/subreddit references from
// comment text using regex patterns. No external dependencies.
package mentions

import (
	"regexp"
	"strings"
)

// Kind distinguishes user mentions from subreddit mentions.
type Kind string

const (
	KindUser      Kind = "user"
	KindSubreddit Kind = "subreddit"
)

// Mention represents a single extracted reference.
type Mention struct {
	Kind Kind   // user or subreddit
	Name string // lowercased name without the u/ or r/ prefix
	Span string // the matched text fragment as written
}

// userRe matches u/name or /u/name when not embedded in a longer path
// or word. Reddit usernames are 3-20 chars of letters, digits, _ and -.
var userRe = regexp.MustCompile(`(?i)(?:^|[^\w/])(/?u/([A-Za-z0-9_-]{3,20}))\b`)

// subRe matches r/name or /r/name. Subreddit names start with a letter
// or digit and run 2-21 chars of letters, digits and _.
var subRe = regexp.MustCompile(`(?i)(?:^|[^\w/])(/?r/([A-Za-z0-9][A-Za-z0-9_]{1,20}))\b`)

// Extract finds all user and subreddit mentions in text, deduplicated
// by kind and lowercased name, in order of first appearance.
func Extract(text string) []Mention {
	if text == "" {
		return nil
	}
	var out []Mention
	seen := make(map[string]bool)

	collect := func(re *regexp.Regexp, kind Kind) {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := strings.ToLower(m[2])
			key := string(kind) + "|" + name
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Mention{Kind: kind, Name: name, Span: m[1]})
		}
	}
	collect(userRe, KindUser)
	collect(subRe, KindSubreddit)
	return out
}

// Users returns the lowercased usernames mentioned in text.
func Users(text string) []string {
	return names(Extract(text), KindUser)
}

// Subreddits returns the lowercased subreddit names mentioned in text.
func Subreddits(text string) []string {
	return names(Extract(text), KindSubreddit)
}

func names(ms []Mention, kind Kind) []string {
	var out []string
	for _, m := range ms {
		if m.Kind == kind {
			out = append(out, m.Name)
		}
	}
	return out
}
