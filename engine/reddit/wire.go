package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
)

// Thing kinds we care about.
const (
	KindComment = "t1"
	KindMore    = "more"
)

// Listing is Reddit's paging envelope.
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

type ListingData struct {
	Children []Thing `json:"children"`
	After    string  `json:"after"`
}

// Thing is the {kind, data} envelope every node arrives in.
type Thing struct {
	Kind string    `json:"kind"`
	Data ThingData `json:"data"`
}

// ThingData is the union of the comment, post, and "more" payload fields.
type ThingData struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Author     string   `json:"author"`
	Body       string   `json:"body"`
	Score      int      `json:"score"`
	CreatedUTC float64  `json:"created_utc"`
	ParentID   string   `json:"parent_id"`
	Permalink  string   `json:"permalink"`
	Replies    Replies  `json:"replies"`
	Children   []string `json:"children"`
	Count      int      `json:"count"`

	// Post-only fields (listing 0 of a thread document).
	Title       string `json:"title"`
	Subreddit   string `json:"subreddit"`
	SelfText    string `json:"selftext"`
	URL         string `json:"url"`
	NumComments int    `json:"num_comments"`
}

// Replies is either the empty string or a nested listing; both shapes appear
// in real payloads.
type Replies struct {
	Listing *Listing
}

func (r *Replies) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte(`""`)) || bytes.Equal(trimmed, []byte("null")) {
		r.Listing = nil
		return nil
	}
	var l Listing
	if err := json.Unmarshal(trimmed, &l); err != nil {
		return err
	}
	r.Listing = &l
	return nil
}

// Children returns the nested things, or nil when there are no replies.
func (r Replies) Children() []Thing {
	if r.Listing == nil {
		return nil
	}
	return r.Listing.Data.Children
}

// ParseThread decodes a thread document. Reddit returns
// [postListing, commentListing]; anything else is malformed.
func ParseThread(sourceURL string, body []byte) (domain.Thread, []Thing, error) {
	var listings []Listing
	if err := json.Unmarshal(body, &listings); err != nil {
		return domain.Thread{}, nil, &domain.MalformedError{URL: sourceURL, Reason: "decode thread", Err: err}
	}
	if len(listings) < 2 {
		return domain.Thread{}, nil, &domain.MalformedError{
			URL:    sourceURL,
			Reason: fmt.Sprintf("expected 2 listings, got %d", len(listings)),
		}
	}

	var thread domain.Thread
	if posts := listings[0].Data.Children; len(posts) > 0 {
		d := posts[0].Data
		thread = domain.Thread{
			ID:          d.ID,
			Title:       d.Title,
			Subreddit:   d.Subreddit,
			Author:      d.Author,
			Permalink:   d.Permalink,
			URL:         d.URL,
			Score:       d.Score,
			NumComments: d.NumComments,
			CreatedUTC:  d.CreatedUTC,
		}
	}
	return thread, listings[1].Data.Children, nil
}

// moreChildrenEnvelope mirrors {"json":{"data":{"things":[...]}}}.
type moreChildrenEnvelope struct {
	JSON struct {
		Data struct {
			Things []Thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// ParseMoreChildren decodes a continuation response. Things arrive flat,
// each carrying its own parent_id fullname.
func ParseMoreChildren(sourceURL string, body []byte) ([]Thing, error) {
	var env moreChildrenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &domain.MalformedError{URL: sourceURL, Reason: "decode morechildren", Err: err}
	}
	return env.JSON.Data.Things, nil
}
