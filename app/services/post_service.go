package services

import (
	"context"
	"errors"
	"fmt"

	"murmur/app/cache"
	"murmur/app/models"
	"murmur/app/repositories"

	"github.com/charmbracelet/log"
)

// PostService handles post lifecycle operations
type PostService struct {
	store  repositories.Store
	linker *AttachmentLinker
	files  AttachmentFiles
	cache  cache.FeedCache
	logger *log.Logger
}

// NewPostService creates a new post service
func NewPostService(store repositories.Store, files AttachmentFiles, feedCache cache.FeedCache, logger *log.Logger) *PostService {
	if feedCache == nil {
		feedCache = cache.Noop{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PostService{
		store:  store,
		linker: NewAttachmentLinker(store),
		files:  files,
		cache:  feedCache,
		logger: logger,
	}
}

// Create validates np and stores it as a post by author, linking the
// referenced attachment if any.
func (s *PostService) Create(ctx context.Context, author *models.User, np *models.NewPost) (*models.Post, error) {
	if err := np.Validate(); err != nil {
		if fields := models.FieldErrors(err); fields != nil {
			return nil, &ValidationError{Fields: fields}
		}
		return nil, err
	}

	post := &models.Post{Content: np.Content, AuthorID: author.ID}
	var attachmentID *int64
	if np.Attachment != nil {
		id := np.Attachment.ID
		attachmentID = &id
	}

	created, err := s.linker.Attach(ctx, post, attachmentID)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	return created, nil
}

// Delete removes a post owned by requester along with its attachment. The
// records go in one transaction; the file is removed afterwards and a
// failure there is only logged.
func (s *PostService) Delete(ctx context.Context, requester *models.User, id int64) error {
	var fileName string
	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		post, err := tx.Posts().GetByID(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrPostNotFound, id)
		}
		if err != nil {
			return err
		}
		if post.AuthorID != requester.ID {
			return ErrForbidden
		}

		fileName = ""
		if post.HasAttachment() {
			attachment, err := tx.Attachments().GetByID(ctx, *post.AttachmentID)
			switch {
			case err == nil:
				fileName = attachment.Name
				if err := tx.Attachments().Delete(ctx, attachment.ID); err != nil {
					return err
				}
			case !errors.Is(err, repositories.ErrNotFound):
				return err
			}
		}
		return tx.Posts().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if fileName != "" {
		if err := s.files.DeleteAttachment(fileName); err != nil {
			s.logger.Error("failed to delete attachment file", "post", id, "name", fileName, "err", err)
		}
	}
	s.cache.Invalidate(ctx)
	return nil
}

// Views hydrates posts with their authors and attachments. Lookups are
// shared across the slice.
func (s *PostService) Views(ctx context.Context, posts []*models.Post) ([]*models.PostView, error) {
	h := newHydrator(s.store)
	views := make([]*models.PostView, 0, len(posts))
	for _, post := range posts {
		view, err := h.view(ctx, post)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// View hydrates a single post.
func (s *PostService) View(ctx context.Context, post *models.Post) (*models.PostView, error) {
	return newHydrator(s.store).view(ctx, post)
}

// PageViews hydrates the content of a page.
func (s *PostService) PageViews(ctx context.Context, page *models.Page[*models.Post]) (*models.Page[*models.PostView], error) {
	views, err := s.Views(ctx, page.Content)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.PostView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}
	return models.MapPage(page, func(p *models.Post) *models.PostView {
		return byID[p.ID]
	}), nil
}

type hydrator struct {
	store       repositories.Store
	users       map[int64]*models.User
	attachments map[int64]*models.Attachment
}

func newHydrator(store repositories.Store) *hydrator {
	return &hydrator{
		store:       store,
		users:       make(map[int64]*models.User),
		attachments: make(map[int64]*models.Attachment),
	}
}

func (h *hydrator) view(ctx context.Context, post *models.Post) (*models.PostView, error) {
	author, ok := h.users[post.AuthorID]
	if !ok {
		var err error
		author, err = h.store.Users().GetByID(ctx, post.AuthorID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("load author %d: %w", post.AuthorID, err)
		}
		h.users[post.AuthorID] = author
	}

	var attachment *models.Attachment
	if post.HasAttachment() {
		id := *post.AttachmentID
		if attachment, ok = h.attachments[id]; !ok {
			var err error
			attachment, err = h.store.Attachments().GetByID(ctx, id)
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("load attachment %d: %w", id, err)
			}
			h.attachments[id] = attachment
		}
	}
	return models.NewPostView(post, author, attachment), nil
}
