package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"murmur/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	store, err := NewBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func createPosts(t *testing.T, repo PostRepository, authorID int64, n int) []*models.Post {
	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		post := &models.Post{
			Content:  fmt.Sprintf("post number %d by %d", i, authorID),
			AuthorID: authorID,
		}
		require.NoError(t, repo.Create(context.Background(), post))
		posts = append(posts, post)
	}
	return posts
}

func ids(posts []*models.Post) []int64 {
	out := make([]int64, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestPostRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Posts()

	t.Run("create and get post", func(t *testing.T) {
		post := &models.Post{
			Content:  "This is a test post content",
			AuthorID: 1,
		}

		err := repo.Create(ctx, post)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), post.ID)
		assert.False(t, post.CreatedAt.IsZero())

		retrieved, err := repo.GetByID(ctx, post.ID)
		assert.NoError(t, err)
		assert.Equal(t, post.Content, retrieved.Content)
		assert.Equal(t, post.AuthorID, retrieved.AuthorID)
		assert.True(t, post.CreatedAt.Equal(retrieved.CreatedAt))
	})

	t.Run("get missing post", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete post", func(t *testing.T) {
		post := &models.Post{Content: "This post will be deleted", AuthorID: 2}
		require.NoError(t, repo.Create(ctx, post))

		require.NoError(t, repo.Delete(ctx, post.ID))

		_, err := repo.GetByID(ctx, post.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		n, err := repo.Count(ctx, NewPostQuery(AuthoredBy(2)))
		assert.NoError(t, err)
		assert.Zero(t, n)

		assert.ErrorIs(t, repo.Delete(ctx, post.ID), ErrNotFound)
	})
}

func TestPostRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Posts()

	// ids 1..5 by author 1, 6..8 by author 2, 9..10 by author 1
	createPosts(t, repo, 1, 5)
	createPosts(t, repo, 2, 3)
	createPosts(t, repo, 1, 2)

	tests := []struct {
		name  string
		query *PostQuery
		want  []int64
	}{
		{"all", NewPostQuery(), []int64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}},
		{"older than 4", NewPostQuery(IDLessThan(4)), []int64{3, 2, 1}},
		{"newer than 8", NewPostQuery(IDGreaterThan(8)), []int64{10, 9}},
		{"author 1", NewPostQuery(AuthoredBy(1)), []int64{10, 9, 5, 4, 3, 2, 1}},
		{"author 2 older than 8", NewPostQuery(IDLessThan(8), AuthoredBy(2)), []int64{7, 6}},
		{"author 1 newer than 5", NewPostQuery(IDGreaterThan(5), AuthoredBy(1)), []int64{10, 9}},
		{"window", NewPostQuery(IDGreaterThan(2), IDLessThan(6)), []int64{5, 4, 3}},
		{"unknown ref above range", NewPostQuery(IDGreaterThan(100)), []int64{}},
		{"ref below range", NewPostQuery(IDLessThan(1)), []int64{}},
		{"negative ref", NewPostQuery(IDGreaterThan(-7), AuthoredBy(2)), []int64{8, 7, 6}},
		{"unknown author", NewPostQuery(AuthoredBy(42)), []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all, err := repo.FindAll(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(all))

			n, err := repo.Count(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}

	t.Run("pages", func(t *testing.T) {
		q := NewPostQuery(AuthoredBy(1))
		first, err := repo.Find(ctx, q, Pageable{Page: 0, Size: 3})
		require.NoError(t, err)
		assert.Equal(t, []int64{10, 9, 5}, ids(first))

		third, err := repo.Find(ctx, q, Pageable{Page: 2, Size: 3})
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids(third))

		beyond, err := repo.Find(ctx, q, Pageable{Page: 5, Size: 3})
		require.NoError(t, err)
		assert.Empty(t, beyond)

		zero, err := repo.Find(ctx, q, Pageable{Page: 0, Size: 0})
		require.NoError(t, err)
		assert.NotNil(t, zero)
		assert.Empty(t, zero)
	})
}

func TestPostRepositoryConcurrentCreateKeepsOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Posts()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			post := &models.Post{Content: fmt.Sprintf("concurrent post %d", i), AuthorID: 1}
			assert.NoError(t, repo.Create(ctx, post))
		}(i)
	}
	wg.Wait()

	all, err := repo.FindAll(ctx, NewPostQuery())
	require.NoError(t, err)
	require.Len(t, all, 20)
	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1].ID-1, all[i].ID)
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}
}
