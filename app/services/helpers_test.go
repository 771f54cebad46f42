package services

import (
	"context"
	"fmt"
	"testing"

	"murmur/app/models"
	"murmur/app/repositories"
	"murmur/app/repositories/mock"

	"github.com/stretchr/testify/require"
)

// testStores returns each store implementation the services run against.
func testStores(t *testing.T) map[string]repositories.Store {
	badgerStore, err := repositories.NewBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { badgerStore.Close() })

	return map[string]repositories.Store{
		"badger": badgerStore,
		"mock":   mock.NewStore(),
	}
}

func createUser(t *testing.T, store repositories.Store, username string) *models.User {
	user := &models.User{Username: username, DisplayName: username, PasswordHash: "x"}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func createPosts(t *testing.T, store repositories.Store, author *models.User, n int) []*models.Post {
	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		post := &models.Post{Content: fmt.Sprintf("post number %d by %s", i, author.Username), AuthorID: author.ID}
		require.NoError(t, store.Posts().Create(context.Background(), post))
		posts = append(posts, post)
	}
	return posts
}

func postIDs(posts []*models.Post) []int64 {
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}
