package gormstore

import (
	"context"
	"time"

	"murmur/app/models"
	"murmur/app/repositories"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store implements repositories.Store on PostgreSQL through GORM.
type Store struct {
	db   *gorm.DB
	inTx bool
}

// New connects to dsn and migrates the schema.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Attachment{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return &Store{db: db}, nil
}

func (s *Store) Posts() repositories.PostRepository {
	return &PostRepository{db: s.db}
}

func (s *Store) Attachments() repositories.AttachmentRepository {
	return &AttachmentRepository{db: s.db, lock: s.inTx}
}

func (s *Store) Users() repositories.UserRepository {
	return &UserRepository{db: s.db}
}

// Atomic runs fn in a database transaction. Attachment reads inside fn take
// row locks, so a link and a reap of the same attachment serialize.
func (s *Store) Atomic(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

// truncateAll empties every table and restarts the id sequences.
const truncateAll = "TRUNCATE TABLE posts, attachments, users RESTART IDENTITY"

// Clear removes every record.
func (s *Store) Clear() error {
	return s.db.Exec(truncateAll).Error
}

func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// notFound maps GORM's missing-row error onto the repository sentinel.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}

// compile turns the typed fragments of q into SQL expressions. A query
// without an author fragment carries no author clause at all.
func compile(q *repositories.PostQuery) []clause.Expression {
	exprs := make([]clause.Expression, 0, len(q.Fragments()))
	for _, f := range q.Fragments() {
		switch v := f.(type) {
		case repositories.IDLessThan:
			exprs = append(exprs, clause.Lt{Column: clause.Column{Name: "id"}, Value: int64(v)})
		case repositories.IDGreaterThan:
			exprs = append(exprs, clause.Gt{Column: clause.Column{Name: "id"}, Value: int64(v)})
		case repositories.AuthoredBy:
			exprs = append(exprs, clause.Eq{Column: clause.Column{Name: "author_id"}, Value: int64(v)})
		}
	}
	return exprs
}

var newestFirst = clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}

// PostRepository implements repositories.PostRepository.
type PostRepository struct {
	db *gorm.DB
}

func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	post.BeforeCreate()
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

func (r *PostRepository) scoped(ctx context.Context, q *repositories.PostQuery) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&models.Post{})
	if exprs := compile(q); len(exprs) > 0 {
		tx = tx.Clauses(clause.Where{Exprs: exprs})
	}
	return tx
}

func (r *PostRepository) Find(ctx context.Context, q *repositories.PostQuery, page repositories.Pageable) ([]*models.Post, error) {
	posts := []*models.Post{}
	if page.Limit() == 0 {
		return posts, nil
	}
	err := r.scoped(ctx, q).Order(newestFirst).Limit(page.Limit()).Offset(page.Offset()).Find(&posts).Error
	return posts, err
}

func (r *PostRepository) FindAll(ctx context.Context, q *repositories.PostQuery) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := r.scoped(ctx, q).Order(newestFirst).Find(&posts).Error
	return posts, err
}

func (r *PostRepository) Count(ctx context.Context, q *repositories.PostQuery) (int64, error) {
	var n int64
	err := r.scoped(ctx, q).Count(&n).Error
	return n, err
}

func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// AttachmentRepository implements repositories.AttachmentRepository.
type AttachmentRepository struct {
	db   *gorm.DB
	lock bool
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	attachment.BeforeCreate()
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id int64) (*models.Attachment, error) {
	tx := r.db.WithContext(ctx)
	if r.lock {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var attachment models.Attachment
	if err := tx.First(&attachment, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &attachment, nil
}

// Update writes the mutable columns only; created_at never changes.
func (r *AttachmentRepository) Update(ctx context.Context, attachment *models.Attachment) error {
	res := r.db.WithContext(ctx).Model(&models.Attachment{}).
		Where("id = ?", attachment.ID).
		Updates(map[string]interface{}{
			"post_id": attachment.PostID,
			"reaping": attachment.Reaping,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&models.Attachment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *AttachmentRepository) FindUnlinkedBefore(ctx context.Context, threshold time.Time) ([]*models.Attachment, error) {
	attachments := []*models.Attachment{}
	err := r.db.WithContext(ctx).
		Where("created_at < ? AND post_id IS NULL", threshold).
		Order("created_at ASC").
		Find(&attachments).Error
	return attachments, err
}

// UserRepository implements repositories.UserRepository.
type UserRepository struct {
	db *gorm.DB
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.BeforeCreate()
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repositories.ErrDuplicate
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) others(ctx context.Context, exclude int64) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&models.User{})
	if exclude > 0 {
		tx = tx.Where("id <> ?", exclude)
	}
	return tx
}

func (r *UserRepository) Find(ctx context.Context, exclude int64, page repositories.Pageable) ([]*models.User, error) {
	users := []*models.User{}
	if page.Limit() == 0 {
		return users, nil
	}
	err := r.others(ctx, exclude).Order("id ASC").Limit(page.Limit()).Offset(page.Offset()).Find(&users).Error
	return users, err
}

func (r *UserRepository) Count(ctx context.Context, exclude int64) (int64, error) {
	var n int64
	err := r.others(ctx, exclude).Count(&n).Error
	return n, err
}

// Update writes the profile columns only.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"display_name": user.DisplayName,
			"image":        user.Image,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
