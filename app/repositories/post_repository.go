package repositories

import (
	"bytes"
	"context"

	"murmur/app/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// BadgerPostRepository implements PostRepository using BadgerDB.
//
// Posts live under post:<id>; post-author:<author><id> is a keys-only index
// so author-scoped queries scan only that author's posts.
type BadgerPostRepository struct {
	run txRunner
}

// Create assigns the next id and stores the post. CreatedAt is stamped in
// the same transaction as the id so id order follows time order.
func (r *BadgerPostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.run.update(ctx, func(txn *badger.Txn) error {
		id, err := getNextID(txn, PostSeqKey)
		if err != nil {
			return errors.Wrap(err, "next post id")
		}
		post.ID = id
		post.BeforeCreate()

		if err := setEntity(txn, postKey(post.ID), post); err != nil {
			return err
		}
		return txn.Set(authorPostKey(post.AuthorID, post.ID), nil)
	})
}

// GetByID retrieves a post by ID
func (r *BadgerPostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	err := r.run.view(func(txn *badger.Txn) error {
		return getEntity(txn, postKey(id), &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Find retrieves one page of posts matching q, newest first.
func (r *BadgerPostRepository) Find(ctx context.Context, q *PostQuery, page Pageable) ([]*models.Post, error) {
	posts := []*models.Post{}
	limit := page.Limit()
	if limit == 0 {
		return posts, nil
	}
	skip := page.Offset()
	err := r.run.view(func(txn *badger.Txn) error {
		return scanPosts(ctx, txn, q, func(id int64) (bool, error) {
			if skip > 0 {
				skip--
				return true, nil
			}
			post, err := loadPost(txn, id)
			if err != nil {
				return false, err
			}
			posts = append(posts, post)
			return len(posts) < limit, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// FindAll retrieves every post matching q, newest first.
func (r *BadgerPostRepository) FindAll(ctx context.Context, q *PostQuery) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := r.run.view(func(txn *badger.Txn) error {
		return scanPosts(ctx, txn, q, func(id int64) (bool, error) {
			post, err := loadPost(txn, id)
			if err != nil {
				return false, err
			}
			posts = append(posts, post)
			return true, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Count walks matching keys only; post bodies are never read.
func (r *BadgerPostRepository) Count(ctx context.Context, q *PostQuery) (int64, error) {
	var n int64
	err := r.run.view(func(txn *badger.Txn) error {
		return scanPosts(ctx, txn, q, func(int64) (bool, error) {
			n++
			return true, nil
		})
	})
	return n, err
}

// Delete deletes a post by ID together with its index entry.
func (r *BadgerPostRepository) Delete(ctx context.Context, id int64) error {
	return r.run.update(ctx, func(txn *badger.Txn) error {
		var post models.Post
		if err := getEntity(txn, postKey(id), &post); err != nil {
			return err
		}
		if err := txn.Delete(authorPostKey(post.AuthorID, id)); err != nil {
			return err
		}
		return txn.Delete(postKey(id))
	})
}

func loadPost(txn *badger.Txn, id int64) (*models.Post, error) {
	var post models.Post
	if err := getEntity(txn, postKey(id), &post); err != nil {
		return nil, errors.Wrapf(err, "load post %d", id)
	}
	return &post, nil
}

// scanPosts compiles q into a key range and walks matching post ids in
// descending order, calling visit until it returns false.
func scanPosts(ctx context.Context, txn *badger.Txn, q *PostQuery, visit func(id int64) (bool, error)) error {
	b := q.Bounds()
	if b.Empty {
		return nil
	}
	// ids start at 1, so an upper bound of 1 or less matches nothing.
	if b.Upper != nil && *b.Upper <= 1 {
		return nil
	}

	prefix := []byte(PostKeyPrefix)
	if b.Author != nil {
		prefix = authorPrefix(*b.Author)
	}

	seek := append(append([]byte(nil), prefix...), bytes.Repeat([]byte{0xff}, 8)...)
	if b.Upper != nil {
		seek = append(append([]byte(nil), prefix...), encodeID(*b.Upper-1)...)
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := it.Item().Key()
		if len(key) != len(prefix)+8 {
			continue
		}
		id := decodeID(key[len(prefix):])
		if b.Lower != nil && id <= *b.Lower {
			return nil
		}
		more, err := visit(id)
		if err != nil || !more {
			return err
		}
	}
	return nil
}
