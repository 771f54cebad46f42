package services

import (
	"context"
	"errors"
	"fmt"

	"murmur/app/models"
	"murmur/app/repositories"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
)

// ProfileImages stores profile pictures by generated name.
type ProfileImages interface {
	SaveProfileImage(data []byte) (string, error)
	DeleteProfileImage(name string) error
}

// UserService registers, lists and updates authors.
type UserService struct {
	users    repositories.UserRepository
	images   ProfileImages
	logger   *log.Logger
	hashCost int
}

// NewUserService creates a UserService hashing with bcrypt's default cost.
func NewUserService(users repositories.UserRepository, images ProfileImages, logger *log.Logger) *UserService {
	return NewUserServiceWithCost(users, images, logger, bcrypt.DefaultCost)
}

// NewUserServiceWithCost lets tests pick a cheaper bcrypt cost.
func NewUserServiceWithCost(users repositories.UserRepository, images ProfileImages, logger *log.Logger, cost int) *UserService {
	return &UserService{users: users, images: images, logger: logger, hashCost: cost}
}

// Register validates nu and stores a new user with a hashed password.
func (s *UserService) Register(ctx context.Context, nu *models.NewUser) (*models.User, error) {
	if err := nu.Validate(); err != nil {
		if fields := models.FieldErrors(err); fields != nil {
			return nil, &ValidationError{Fields: fields}
		}
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     nu.Username,
		DisplayName:  nu.DisplayName,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fieldError("username", "this name is in use")
		}
		return nil, err
	}
	return user, nil
}

// GetByUsername resolves a username, failing with ErrUserNotFound.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// List returns one page of users in registration order. The requester, if
// any, is left out.
func (s *UserService) List(ctx context.Context, requester *models.User, page repositories.Pageable) (*models.Page[*models.User], error) {
	var exclude int64
	if requester != nil {
		exclude = requester.ID
	}
	users, err := s.users.Find(ctx, exclude, page)
	if err != nil {
		return nil, err
	}
	total, err := s.users.Count(ctx, exclude)
	if err != nil {
		return nil, err
	}
	return models.NewPage(users, page.Page, page.Limit(), total), nil
}

// Update changes the display name and, when an image is sent, replaces the
// profile image. Users may only update themselves. The old image is removed
// after the record is saved; a failure there is only logged.
func (s *UserService) Update(ctx context.Context, requester *models.User, id int64, uu *models.UserUpdate) (*models.User, error) {
	if requester == nil || requester.ID != id {
		return nil, ErrForbidden
	}
	if err := uu.Validate(); err != nil {
		if fields := models.FieldErrors(err); fields != nil {
			return nil, &ValidationError{Fields: fields}
		}
		return nil, err
	}
	image, err := uu.ImageData()
	if err != nil {
		return nil, fieldError("image", "must be base64 encoded")
	}

	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	oldImage := user.Image
	user.DisplayName = uu.DisplayName
	if image != nil {
		name, err := s.images.SaveProfileImage(image)
		if err != nil {
			return nil, err
		}
		user.Image = name
	}

	if err := s.users.Update(ctx, user); err != nil {
		if image != nil {
			if cleanupErr := s.images.DeleteProfileImage(user.Image); cleanupErr != nil {
				s.logger.Error("failed to remove unsaved profile image", "name", user.Image, "err", cleanupErr)
			}
		}
		return nil, err
	}

	if image != nil {
		if err := s.images.DeleteProfileImage(oldImage); err != nil {
			s.logger.Error("failed to delete old profile image", "user", id, "name", oldImage, "err", err)
		}
	}
	return user, nil
}

// Authenticate checks a username/password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}
