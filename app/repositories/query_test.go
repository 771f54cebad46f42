package repositories

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostQueryBounds(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		b := NewPostQuery().Bounds()
		assert.Nil(t, b.Lower)
		assert.Nil(t, b.Upper)
		assert.Nil(t, b.Author)
		assert.False(t, b.Empty)
	})

	t.Run("nil query", func(t *testing.T) {
		var q *PostQuery
		assert.Empty(t, q.Fragments())
		assert.True(t, q.Matches(1, 1))
	})

	t.Run("tightest bounds win", func(t *testing.T) {
		b := NewPostQuery(IDLessThan(10), IDLessThan(7), IDGreaterThan(2), IDGreaterThan(3)).Bounds()
		assert.Equal(t, int64(7), *b.Upper)
		assert.Equal(t, int64(3), *b.Lower)
		assert.False(t, b.Empty)
	})

	t.Run("adjacent bounds are empty", func(t *testing.T) {
		assert.True(t, NewPostQuery(IDGreaterThan(3), IDLessThan(4)).Bounds().Empty)
		assert.True(t, NewPostQuery(IDGreaterThan(5), IDLessThan(4)).Bounds().Empty)
	})

	t.Run("conflicting authors are empty", func(t *testing.T) {
		assert.True(t, NewPostQuery(AuthoredBy(1), AuthoredBy(2)).Bounds().Empty)
		assert.False(t, NewPostQuery(AuthoredBy(1), AuthoredBy(1)).Bounds().Empty)
	})
}

func TestPostQueryAndDoesNotAlias(t *testing.T) {
	base := NewPostQuery(IDLessThan(5))
	scoped := base.And(AuthoredBy(3))

	assert.Len(t, base.Fragments(), 1)
	assert.Equal(t, []Fragment{IDLessThan(5), AuthoredBy(3)}, scoped.Fragments())
}

func TestPostQueryMatches(t *testing.T) {
	q := NewPostQuery(IDGreaterThan(2)).And(AuthoredBy(9))
	assert.True(t, q.Matches(3, 9))
	assert.False(t, q.Matches(2, 9))
	assert.False(t, q.Matches(3, 8))
}

func TestPageable(t *testing.T) {
	assert.Equal(t, 20, Pageable{Page: 2, Size: 10}.Offset())
	assert.Equal(t, 0, Pageable{Page: -1, Size: 10}.Offset())
	assert.Equal(t, math.MaxInt, Pageable{Page: 1 << 62, Size: 4}.Offset())
	assert.Equal(t, math.MaxInt, Pageable{Page: math.MaxInt, Size: 2}.Offset())
	assert.Equal(t, math.MaxInt-1, Pageable{Page: (math.MaxInt - 1) / 2, Size: 2}.Offset())
	assert.Equal(t, 0, Pageable{Size: -3}.Limit())
	assert.Equal(t, 5, Pageable{Size: 5}.Limit())
}
