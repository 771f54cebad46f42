package services

import (
	"context"
	"errors"
	"fmt"

	"murmur/app/models"
	"murmur/app/repositories"
)

// AttachmentLinker persists new posts and binds an uploaded attachment to
// them. The post insert and the attachment update commit together.
type AttachmentLinker struct {
	store repositories.Store
}

func NewAttachmentLinker(store repositories.Store) *AttachmentLinker {
	return &AttachmentLinker{store: store}
}

// Attach stores post and, when attachmentID is set, links that attachment
// to it. The returned post carries its assigned id.
//
// A missing attachment, or one already claimed by the reaper, yields
// ErrAttachmentNotFound. An attachment linked to another post yields
// ErrAttachmentInUse. On any error nothing is written.
func (l *AttachmentLinker) Attach(ctx context.Context, post *models.Post, attachmentID *int64) (*models.Post, error) {
	if attachmentID == nil {
		if err := l.store.Posts().Create(ctx, post); err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		return post, nil
	}

	created := *post
	err := l.store.Atomic(ctx, func(tx repositories.Store) error {
		attachment, err := tx.Attachments().GetByID(ctx, *attachmentID)
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrAttachmentNotFound, *attachmentID)
		}
		if err != nil {
			return err
		}
		if attachment.Reaping {
			return fmt.Errorf("%w: %d", ErrAttachmentNotFound, *attachmentID)
		}
		if attachment.IsLinked() {
			return fmt.Errorf("%w: %d", ErrAttachmentInUse, *attachmentID)
		}

		id := attachment.ID
		created.AttachmentID = &id
		if err := tx.Posts().Create(ctx, &created); err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		if err := attachment.Link(created.ID); err != nil {
			return err
		}
		return tx.Attachments().Update(ctx, attachment)
	})
	if err != nil {
		return nil, err
	}
	*post = created
	return post, nil
}
