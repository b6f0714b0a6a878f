package reddit

import (
	"strings"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
)

// Flatten walks a comment forest depth-first, each comment before its
// replies, siblings in listing order. It returns the flat records plus the
// child ids of every "more" placeholder encountered, in encounter order.
// Pure: no I/O, no clock, no shared state.
//
// Parent linkage follows the traversal, not the wire parent_id: a root of
// the forest gets a nil parent even when the document starts mid-thread (a
// focused comment permalink), and a reply points at the comment enclosing
// it. Every non-nil parent therefore names a record emitted earlier.
func Flatten(forest []Thing) ([]domain.FlatComment, []string) {
	var out []domain.FlatComment
	var pending []string

	var walk func(things []Thing, parent *string)
	walk = func(things []Thing, parent *string) {
		for _, th := range things {
			switch th.Kind {
			case KindMore:
				pending = append(pending, th.Data.Children...)
			case KindComment:
				out = append(out, flatComment(th.Data, parent))
				id := th.Data.ID
				walk(th.Data.Replies.Children(), &id)
			}
		}
	}
	walk(forest, nil)

	return out, pending
}

// FlattenMore converts the things of a continuation response. These arrive
// as a flat list with no enclosing tree, so each record's parent comes from
// the entry's own parent fullname. A t3_ parent (the post itself) maps to
// nil. Placeholders are collected the same way Flatten collects them.
func FlattenMore(things []Thing) ([]domain.FlatComment, []string) {
	var out []domain.FlatComment
	var pending []string

	var walk func(things []Thing)
	walk = func(things []Thing) {
		for _, th := range things {
			switch th.Kind {
			case KindMore:
				pending = append(pending, th.Data.Children...)
			case KindComment:
				out = append(out, flatComment(th.Data, parentCommentID(th.Data.ParentID)))
				walk(th.Data.Replies.Children())
			}
		}
	}
	walk(things)

	return out, pending
}

func flatComment(d ThingData, parent *string) domain.FlatComment {
	c := domain.FlatComment{
		ID:         d.ID,
		Body:       d.Body,
		Score:      d.Score,
		CreatedUTC: d.CreatedUTC,
		Permalink:  d.Permalink,
	}
	if parent != nil {
		p := *parent
		c.ParentID = &p
	}
	if d.Author != "" {
		author := d.Author
		c.Author = &author
	}
	return c
}

// parentCommentID strips the fullname prefix. A t3_ parent is the post
// itself, so top-level comments get nil.
func parentCommentID(fullname string) *string {
	if id, ok := strings.CutPrefix(fullname, "t1_"); ok && id != "" {
		return &id
	}
	return nil
}
