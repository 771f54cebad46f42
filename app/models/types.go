package models

import "time"

// Post is a user-authored feed item. IDs are assigned by the store and
// strictly increase in creation order.
type Post struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Content      string    `json:"content" gorm:"type:varchar(5000);not null" validate:"required,min=10,max=5000"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null"`
	AuthorID     int64     `json:"authorId" gorm:"not null;index:idx_posts_author_id"`
	AttachmentID *int64    `json:"attachmentId,omitempty" gorm:"uniqueIndex"`
}

// Attachment is an uploaded file record. PostID stays nil until the
// attachment is linked to a post and never changes afterwards.
type Attachment struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"size:64;not null;uniqueIndex"`
	ContentType string    `json:"fileType" gorm:"size:255;not null"`
	CreatedAt   time.Time `json:"createdAt" gorm:"not null;index"`
	PostID      *int64    `json:"postId,omitempty" gorm:"index"`
	// Reaping is set by the reaper once it has claimed the record for removal.
	Reaping bool `json:"reaping,omitempty" gorm:"not null;default:false"`
}

// User is a registered author.
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"size:255;not null;uniqueIndex"`
	DisplayName  string    `json:"displayName" gorm:"size:255;not null"`
	PasswordHash string    `json:"passwordHash" gorm:"not null"`
	Image        string    `json:"image,omitempty" gorm:"size:64"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null"`
}

// NewPost is the payload accepted when creating a post.
type NewPost struct {
	Content    string         `json:"content" validate:"required,min=10,max=5000"`
	Attachment *AttachmentRef `json:"attachment,omitempty"`
}

// AttachmentRef points at a previously uploaded attachment.
type AttachmentRef struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

// UserUpdate is the profile update payload. Image, when set, is a base64
// encoded PNG or JPEG replacing the current profile image.
type UserUpdate struct {
	DisplayName string `json:"displayName" validate:"required,min=4,max=255"`
	Image       string `json:"image,omitempty" validate:"omitempty,profileimage"`
}

// NewUser is the registration payload.
type NewUser struct {
	Username    string `json:"username" validate:"required,min=4,max=255,alphanum"`
	DisplayName string `json:"displayName" validate:"required,min=4,max=255"`
	Password    string `json:"password" validate:"required,min=8,max=255"`
}
