package services

import (
	"context"
	"errors"
	"fmt"

	"murmur/app/cache"
	"murmur/app/models"
	"murmur/app/repositories"
)

// FeedService answers the feed queries: the latest page of all posts or of
// one user's posts, and pages relative to a cursor post id. Every result is
// ordered newest first.
//
// An empty username means "no user filter"; the author clause is then left
// out of the query entirely.
type FeedService struct {
	store repositories.Store
	cache cache.FeedCache
}

// NewFeedService creates a FeedService. A nil cache disables caching.
func NewFeedService(store repositories.Store, feedCache cache.FeedCache) *FeedService {
	if feedCache == nil {
		feedCache = cache.Noop{}
	}
	return &FeedService{store: store, cache: feedCache}
}

// Page returns one page of the global feed, or of username's posts.
func (s *FeedService) Page(ctx context.Context, username string, page repositories.Pageable) (*models.Page[*models.Post], error) {
	q, err := s.scope(ctx, repositories.NewPostQuery(), username)
	if err != nil {
		return nil, err
	}
	if username != "" || page.Page != 0 {
		return s.find(ctx, q, page)
	}

	cached, version := s.cache.Get(ctx, page.Page, page.Limit())
	if cached != nil {
		return cached, nil
	}
	result, err := s.find(ctx, q, page)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, version, page.Page, page.Limit(), result)
	return result, nil
}

// OlderThan pages through posts with id < refID.
func (s *FeedService) OlderThan(ctx context.Context, refID int64, username string, page repositories.Pageable) (*models.Page[*models.Post], error) {
	q, err := s.scope(ctx, repositories.NewPostQuery(repositories.IDLessThan(refID)), username)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, q, page)
}

// NewerThan returns every post with id > refID.
func (s *FeedService) NewerThan(ctx context.Context, refID int64, username string) ([]*models.Post, error) {
	q, err := s.scope(ctx, repositories.NewPostQuery(repositories.IDGreaterThan(refID)), username)
	if err != nil {
		return nil, err
	}
	posts, err := s.store.Posts().FindAll(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find newer posts: %w", err)
	}
	return posts, nil
}

// CountNewerThan counts the posts NewerThan would return without loading them.
func (s *FeedService) CountNewerThan(ctx context.Context, refID int64, username string) (int64, error) {
	q, err := s.scope(ctx, repositories.NewPostQuery(repositories.IDGreaterThan(refID)), username)
	if err != nil {
		return 0, err
	}
	n, err := s.store.Posts().Count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count newer posts: %w", err)
	}
	return n, nil
}

// scope resolves username once and conjoins the author clause. It fails
// with ErrUserNotFound before any post is read.
func (s *FeedService) scope(ctx context.Context, q *repositories.PostQuery, username string) (*repositories.PostQuery, error) {
	if username == "" {
		return q, nil
	}
	user, err := s.store.Users().GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return q.And(repositories.AuthoredBy(user.ID)), nil
}

func (s *FeedService) find(ctx context.Context, q *repositories.PostQuery, page repositories.Pageable) (*models.Page[*models.Post], error) {
	posts, err := s.store.Posts().Find(ctx, q, page)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	total, err := s.store.Posts().Count(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	return models.NewPage(posts, page.Page, page.Limit(), total), nil
}
