package gormstore

import (
	"context"
	"os"
	"testing"
	"time"

	"murmur/app/models"
	"murmur/app/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dryRunDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=murmur dbname=murmur sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestCompiledPostQueries(t *testing.T) {
	db := dryRunDB(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		query       *repositories.PostQuery
		contains    []string
		notContains []string
	}{
		{
			name:        "older than without user",
			query:       repositories.NewPostQuery(repositories.IDLessThan(4)),
			contains:    []string{`"id" < 4`, `ORDER BY "id" DESC`},
			notContains: []string{"author_id"},
		},
		{
			name:     "newer than scoped to user",
			query:    repositories.NewPostQuery(repositories.IDGreaterThan(4)).And(repositories.AuthoredBy(7)),
			contains: []string{`"id" > 4`, `"author_id" = 7`, "AND"},
		},
		{
			name:        "all posts",
			query:       repositories.NewPostQuery(),
			contains:    []string{`FROM "posts"`},
			notContains: []string{"WHERE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
				repo := &PostRepository{db: tx}
				var posts []*models.Post
				return repo.scoped(ctx, tt.query).Order(newestFirst).Find(&posts)
			})
			for _, s := range tt.contains {
				assert.Contains(t, sql, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, sql, s)
			}
		})
	}
}

func TestCountDoesNotSelectBodies(t *testing.T) {
	db := dryRunDB(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		repo := &PostRepository{db: tx}
		var n int64
		return repo.scoped(context.Background(), repositories.NewPostQuery(repositories.IDGreaterThan(4))).Count(&n)
	})
	assert.Contains(t, sql, "count(*)")
	assert.NotContains(t, sql, "content")
}

func TestUserListingExcludesCaller(t *testing.T) {
	db := dryRunDB(t)
	ctx := context.Background()

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		repo := &UserRepository{db: tx}
		var users []*models.User
		return repo.others(ctx, 3).Order("id ASC").Limit(2).Offset(4).Find(&users)
	})
	assert.Contains(t, sql, "id <> 3")
	assert.Contains(t, sql, "LIMIT 2 OFFSET 4")

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		repo := &UserRepository{db: tx}
		var n int64
		return repo.others(ctx, 0).Count(&n)
	})
	assert.NotContains(t, sql, "WHERE")
}

func TestClearTruncatesEveryTable(t *testing.T) {
	sql := dryRunDB(t).ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Exec(truncateAll)
	})
	for _, table := range []string{"posts", "attachments", "users"} {
		assert.Contains(t, sql, table)
	}
	assert.Contains(t, sql, "RESTART IDENTITY")
}

// TestStoreIntegration runs against a real database when
// MURMUR_TEST_DATABASE_URL is set.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("MURMUR_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MURMUR_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	user := &models.User{Username: "gorm" + time.Now().Format("150405.000000"), DisplayName: "gorm user", PasswordHash: "x"}
	require.NoError(t, store.Users().Create(ctx, user))

	attachment := &models.Attachment{Name: "token" + time.Now().Format("150405.000000"), ContentType: "text/plain"}
	require.NoError(t, store.Attachments().Create(ctx, attachment))

	post := &models.Post{Content: "integration post body", AuthorID: user.ID, AttachmentID: &attachment.ID}
	err = store.Atomic(ctx, func(tx repositories.Store) error {
		a, err := tx.Attachments().GetByID(ctx, attachment.ID)
		if err != nil {
			return err
		}
		if err := tx.Posts().Create(ctx, post); err != nil {
			return err
		}
		if err := a.Link(post.ID); err != nil {
			return err
		}
		return tx.Attachments().Update(ctx, a)
	})
	require.NoError(t, err)

	n, err := store.Posts().Count(ctx, repositories.NewPostQuery(repositories.AuthoredBy(user.ID)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unlinked, err := store.Attachments().FindUnlinkedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	for _, a := range unlinked {
		assert.NotEqual(t, attachment.ID, a.ID)
	}
}
