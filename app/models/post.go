package models

import "time"

// BeforeCreate stamps the creation time. Posts are always stamped by the
// store, never by the caller, so id order follows time order.
func (p *Post) BeforeCreate() {
	p.CreatedAt = time.Now()
}

// HasAttachment reports whether the post owns an attachment.
func (p *Post) HasAttachment() bool {
	return p.AttachmentID != nil
}

// Validate checks the creation payload.
func (np *NewPost) Validate() error {
	return validate.Struct(np)
}
