package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"murmur/app/models"
	"murmur/app/repositories"
)

// Store is an in-memory repositories.Store. Atomic works on a copy of the
// data and swaps it in only when fn succeeds.
type Store struct {
	mutex sync.Mutex
	data  *data
	// inTx is set on the Store handed to Atomic callbacks; it already holds
	// the lock and works on a private copy.
	inTx bool
}

type data struct {
	posts       map[int64]models.Post
	attachments map[int64]models.Attachment
	users       map[int64]models.User
	nextPost    int64
	nextAttach  int64
	nextUser    int64
}

func newData() *data {
	return &data{
		posts:       make(map[int64]models.Post),
		attachments: make(map[int64]models.Attachment),
		users:       make(map[int64]models.User),
		nextPost:    1,
		nextAttach:  1,
		nextUser:    1,
	}
}

func (d *data) clone() *data {
	out := *d
	out.posts = make(map[int64]models.Post, len(d.posts))
	for k, v := range d.posts {
		out.posts[k] = v
	}
	out.attachments = make(map[int64]models.Attachment, len(d.attachments))
	for k, v := range d.attachments {
		out.attachments[k] = v
	}
	out.users = make(map[int64]models.User, len(d.users))
	for k, v := range d.users {
		out.users[k] = v
	}
	return &out
}

func NewStore() *Store {
	return &Store{data: newData()}
}

func (s *Store) Posts() repositories.PostRepository             { return &PostRepository{s} }
func (s *Store) Attachments() repositories.AttachmentRepository { return &AttachmentRepository{s} }
func (s *Store) Users() repositories.UserRepository             { return &UserRepository{s} }
func (s *Store) Close() error                                   { return nil }

func (s *Store) Atomic(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &Store{data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

// with runs fn holding the lock unless the store is already inside Atomic.
func (s *Store) with(fn func(d *data) error) error {
	if !s.inTx {
		s.mutex.Lock()
		defer s.mutex.Unlock()
	}
	return fn(s.data)
}

type PostRepository struct{ s *Store }

func (m *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return m.s.with(func(d *data) error {
		post.ID = d.nextPost
		d.nextPost++
		post.BeforeCreate()
		d.posts[post.ID] = *post
		return nil
	})
}

func (m *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var out models.Post
	err := m.s.with(func(d *data) error {
		post, exists := d.posts[id]
		if !exists {
			return repositories.ErrNotFound
		}
		out = post
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *PostRepository) Find(ctx context.Context, q *repositories.PostQuery, page repositories.Pageable) ([]*models.Post, error) {
	all, err := m.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}
	offset, limit := page.Offset(), page.Limit()
	if offset >= len(all) {
		return []*models.Post{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *PostRepository) FindAll(ctx context.Context, q *repositories.PostQuery) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := m.s.with(func(d *data) error {
		for _, post := range d.posts {
			if q.Matches(post.ID, post.AuthorID) {
				p := post
				posts = append(posts, &p)
			}
		}
		return nil
	})
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].ID > posts[j].ID
	})
	return posts, err
}

func (m *PostRepository) Count(ctx context.Context, q *repositories.PostQuery) (int64, error) {
	var n int64
	err := m.s.with(func(d *data) error {
		for _, post := range d.posts {
			if q.Matches(post.ID, post.AuthorID) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *PostRepository) Delete(ctx context.Context, id int64) error {
	return m.s.with(func(d *data) error {
		if _, exists := d.posts[id]; !exists {
			return repositories.ErrNotFound
		}
		delete(d.posts, id)
		return nil
	})
}

type AttachmentRepository struct{ s *Store }

func (m *AttachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	return m.s.with(func(d *data) error {
		attachment.ID = d.nextAttach
		d.nextAttach++
		attachment.BeforeCreate()
		d.attachments[attachment.ID] = *attachment
		return nil
	})
}

func (m *AttachmentRepository) GetByID(ctx context.Context, id int64) (*models.Attachment, error) {
	var out models.Attachment
	err := m.s.with(func(d *data) error {
		attachment, exists := d.attachments[id]
		if !exists {
			return repositories.ErrNotFound
		}
		out = attachment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *AttachmentRepository) Update(ctx context.Context, attachment *models.Attachment) error {
	return m.s.with(func(d *data) error {
		existing, exists := d.attachments[attachment.ID]
		if !exists {
			return repositories.ErrNotFound
		}
		attachment.CreatedAt = existing.CreatedAt
		d.attachments[attachment.ID] = *attachment
		return nil
	})
}

func (m *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	return m.s.with(func(d *data) error {
		if _, exists := d.attachments[id]; !exists {
			return repositories.ErrNotFound
		}
		delete(d.attachments, id)
		return nil
	})
}

func (m *AttachmentRepository) FindUnlinkedBefore(ctx context.Context, threshold time.Time) ([]*models.Attachment, error) {
	out := []*models.Attachment{}
	err := m.s.with(func(d *data) error {
		for _, attachment := range d.attachments {
			if !attachment.IsLinked() && attachment.CreatedAt.Before(threshold) {
				a := attachment
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

type UserRepository struct{ s *Store }

func (m *UserRepository) Create(ctx context.Context, user *models.User) error {
	return m.s.with(func(d *data) error {
		for _, existing := range d.users {
			if existing.Username == user.Username {
				return repositories.ErrDuplicate
			}
		}
		user.ID = d.nextUser
		d.nextUser++
		user.BeforeCreate()
		d.users[user.ID] = *user
		return nil
	})
}

func (m *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var out models.User
	err := m.s.with(func(d *data) error {
		user, exists := d.users[id]
		if !exists {
			return repositories.ErrNotFound
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var out *models.User
	err := m.s.with(func(d *data) error {
		for _, user := range d.users {
			if user.Username == username {
				u := user
				out = &u
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return out, err
}

func (m *UserRepository) Find(ctx context.Context, exclude int64, page repositories.Pageable) ([]*models.User, error) {
	all := []*models.User{}
	err := m.s.with(func(d *data) error {
		for _, user := range d.users {
			if user.ID != exclude {
				u := user
				all = append(all, &u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})
	offset, limit := page.Offset(), page.Limit()
	if offset >= len(all) {
		return []*models.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *UserRepository) Count(ctx context.Context, exclude int64) (int64, error) {
	var n int64
	err := m.s.with(func(d *data) error {
		for id := range d.users {
			if id != exclude {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *UserRepository) Update(ctx context.Context, user *models.User) error {
	return m.s.with(func(d *data) error {
		existing, exists := d.users[user.ID]
		if !exists {
			return repositories.ErrNotFound
		}
		existing.DisplayName = user.DisplayName
		existing.Image = user.Image
		d.users[user.ID] = existing
		*user = existing
		return nil
	})
}
