package models

// UserView is the public projection of a User.
type UserView struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image,omitempty"`
}

// AttachmentView is the public projection of an Attachment.
type AttachmentView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FileType string `json:"fileType"`
}

// PostView is what the API returns for a post.
type PostView struct {
	ID         int64           `json:"id"`
	Content    string          `json:"content"`
	Date       int64           `json:"date"`
	User       UserView        `json:"user"`
	Attachment *AttachmentView `json:"attachment,omitempty"`
}

// NewUserView projects u.
func NewUserView(u *User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Image:       u.Image,
	}
}

// NewAttachmentView projects a, or returns nil.
func NewAttachmentView(a *Attachment) *AttachmentView {
	if a == nil {
		return nil
	}
	return &AttachmentView{ID: a.ID, Name: a.Name, FileType: a.ContentType}
}

// NewPostView projects a post together with its author and attachment.
func NewPostView(p *Post, author *User, attachment *Attachment) *PostView {
	v := &PostView{
		ID:         p.ID,
		Content:    p.Content,
		Date:       p.CreatedAt.UnixMilli(),
		Attachment: NewAttachmentView(attachment),
	}
	if author != nil {
		v.User = NewUserView(author)
	}
	return v
}
