package repositories

import "math"

// Fragment is one typed predicate over posts. Fragments are accumulated by a
// PostQuery and compiled by each backend into its native query form.
type Fragment interface {
	fragment()
}

// IDLessThan matches posts with id < the value.
type IDLessThan int64

// IDGreaterThan matches posts with id > the value.
type IDGreaterThan int64

// AuthoredBy matches posts written by the user with this id.
type AuthoredBy int64

func (IDLessThan) fragment()    {}
func (IDGreaterThan) fragment() {}
func (AuthoredBy) fragment()    {}

// PostQuery is the conjunction of its fragments. The zero value matches
// every post.
type PostQuery struct {
	fragments []Fragment
}

// NewPostQuery starts a query from fs.
func NewPostQuery(fs ...Fragment) *PostQuery {
	return &PostQuery{fragments: append([]Fragment(nil), fs...)}
}

// And returns a copy of q with f conjoined.
func (q *PostQuery) And(f Fragment) *PostQuery {
	out := &PostQuery{fragments: make([]Fragment, 0, len(q.Fragments())+1)}
	out.fragments = append(out.fragments, q.Fragments()...)
	out.fragments = append(out.fragments, f)
	return out
}

// Fragments returns the accumulated fragments in insertion order.
func (q *PostQuery) Fragments() []Fragment {
	if q == nil {
		return nil
	}
	return q.fragments
}

// Bounds is a PostQuery folded into an id window and an optional author.
// Lower and Upper are exclusive.
type Bounds struct {
	Lower  *int64
	Upper  *int64
	Author *int64
	// Empty is set when the fragments cannot all hold at once.
	Empty bool
}

// Bounds folds q for backends that scan ordered key ranges.
func (q *PostQuery) Bounds() Bounds {
	var b Bounds
	for _, f := range q.Fragments() {
		switch v := f.(type) {
		case IDLessThan:
			id := int64(v)
			if b.Upper == nil || id < *b.Upper {
				b.Upper = &id
			}
		case IDGreaterThan:
			id := int64(v)
			if b.Lower == nil || id > *b.Lower {
				b.Lower = &id
			}
		case AuthoredBy:
			id := int64(v)
			if b.Author != nil && *b.Author != id {
				b.Empty = true
			}
			b.Author = &id
		}
	}
	if b.Lower != nil && b.Upper != nil && (*b.Upper <= *b.Lower || *b.Upper-1 == *b.Lower) {
		b.Empty = true
	}
	return b
}

// Matches evaluates q against a single post.
func (q *PostQuery) Matches(id, authorID int64) bool {
	for _, f := range q.Fragments() {
		switch v := f.(type) {
		case IDLessThan:
			if id >= int64(v) {
				return false
			}
		case IDGreaterThan:
			if id <= int64(v) {
				return false
			}
		case AuthoredBy:
			if authorID != int64(v) {
				return false
			}
		}
	}
	return true
}

// Pageable selects a 0-based page of Size items.
type Pageable struct {
	Page int
	Size int
}

// Offset is the number of items before the page. Pages too far out to
// address saturate at math.MaxInt, past the end of any result set.
func (p Pageable) Offset() int {
	if p.Page <= 0 || p.Size <= 0 {
		return 0
	}
	if p.Page > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return p.Page * p.Size
}

// Limit is the page size, never negative.
func (p Pageable) Limit() int {
	if p.Size < 0 {
		return 0
	}
	return p.Size
}
