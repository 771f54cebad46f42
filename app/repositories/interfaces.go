package repositories

import (
	"context"
	"time"

	"murmur/app/models"
)

// PostRepository defines the interface for post data access
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	// Find returns one page of posts matching q, newest first.
	Find(ctx context.Context, q *PostQuery, page Pageable) ([]*models.Post, error)
	// FindAll returns every post matching q, newest first.
	FindAll(ctx context.Context, q *PostQuery) ([]*models.Post, error)
	// Count returns the number of posts matching q without loading them.
	Count(ctx context.Context, q *PostQuery) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// AttachmentRepository defines the interface for attachment data access
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id int64) (*models.Attachment, error)
	Update(ctx context.Context, attachment *models.Attachment) error
	Delete(ctx context.Context, id int64) error
	// FindUnlinkedBefore returns attachments with no post created strictly
	// before threshold, oldest first.
	FindUnlinkedBefore(ctx context.Context, threshold time.Time) ([]*models.Attachment, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// Find returns one page of users in id order, leaving out exclude when
	// it is positive.
	Find(ctx context.Context, exclude int64, page Pageable) ([]*models.User, error)
	Count(ctx context.Context, exclude int64) (int64, error)
	// Update writes the profile fields; username and password stay as stored.
	Update(ctx context.Context, user *models.User) error
}

// Store groups the repositories that share one underlying database.
type Store interface {
	Posts() PostRepository
	Attachments() AttachmentRepository
	Users() UserRepository
	// Atomic runs fn against a transactional view of the store. Either every
	// write made through the Store handed to fn commits, or none does.
	Atomic(ctx context.Context, fn func(tx Store) error) error
	Close() error
}
