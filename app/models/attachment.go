package models

import (
	"errors"
	"time"
)

// ErrAlreadyLinked is returned when linking an attachment a second time.
var ErrAlreadyLinked = errors.New("attachment is already linked to a post")

// BeforeCreate sets up any necessary fields before creation
func (a *Attachment) BeforeCreate() {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
}

// IsLinked reports whether the attachment belongs to a post.
func (a *Attachment) IsLinked() bool {
	return a.PostID != nil
}

// Link binds the attachment to postID. The link is set at most once.
func (a *Attachment) Link(postID int64) error {
	if a.IsLinked() {
		return ErrAlreadyLinked
	}
	if postID <= 0 {
		return errors.New("post id must be positive")
	}
	a.PostID = &postID
	return nil
}

// Reapable reports whether an unlinked attachment has outlived the
// retention window at now.
func (a *Attachment) Reapable(now time.Time, retention time.Duration) bool {
	if a.IsLinked() {
		return false
	}
	return now.Sub(a.CreatedAt) >= retention
}
