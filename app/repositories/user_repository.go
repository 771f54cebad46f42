package repositories

import (
	"context"

	"murmur/app/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// BadgerUserRepository implements UserRepository using BadgerDB.
type BadgerUserRepository struct {
	run txRunner
}

// Create stores a user, rejecting a username that is already taken.
func (r *BadgerUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.run.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(usernameKey(user.Username))
		if err == nil {
			return ErrDuplicate
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		id, err := getNextID(txn, UserSeqKey)
		if err != nil {
			return errors.Wrap(err, "next user id")
		}
		user.ID = id
		user.BeforeCreate()

		if err := setEntity(txn, userKey(id), user); err != nil {
			return err
		}
		return txn.Set(usernameKey(user.Username), encodeID(id))
	})
}

func (r *BadgerUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.run.view(func(txn *badger.Txn) error {
		return getEntity(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *BadgerUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.run.view(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var id int64
		err = item.Value(func(val []byte) error {
			id = decodeID(val)
			return nil
		})
		if err != nil {
			return err
		}
		return getEntity(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Find walks user keys in id order.
func (r *BadgerUserRepository) Find(ctx context.Context, exclude int64, page Pageable) ([]*models.User, error) {
	users := []*models.User{}
	limit := page.Limit()
	if limit == 0 {
		return users, nil
	}
	skip := page.Offset()
	err := r.run.view(func(txn *badger.Txn) error {
		return scanUsers(ctx, txn, exclude, func(id int64) (bool, error) {
			if skip > 0 {
				skip--
				return true, nil
			}
			var user models.User
			if err := getEntity(txn, userKey(id), &user); err != nil {
				return false, errors.Wrapf(err, "load user %d", id)
			}
			users = append(users, &user)
			return len(users) < limit, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *BadgerUserRepository) Count(ctx context.Context, exclude int64) (int64, error) {
	var n int64
	err := r.run.view(func(txn *badger.Txn) error {
		return scanUsers(ctx, txn, exclude, func(int64) (bool, error) {
			n++
			return true, nil
		})
	})
	return n, err
}

func (r *BadgerUserRepository) Update(ctx context.Context, user *models.User) error {
	return r.run.update(ctx, func(txn *badger.Txn) error {
		var existing models.User
		if err := getEntity(txn, userKey(user.ID), &existing); err != nil {
			return err
		}
		existing.DisplayName = user.DisplayName
		existing.Image = user.Image
		if err := setEntity(txn, userKey(user.ID), &existing); err != nil {
			return err
		}
		*user = existing
		return nil
	})
}

// scanUsers visits user ids in ascending order until visit returns false.
func scanUsers(ctx context.Context, txn *badger.Txn, exclude int64, visit func(id int64) (bool, error)) error {
	prefix := []byte(UserKeyPrefix)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := it.Item().Key()
		if len(key) != len(prefix)+8 {
			continue
		}
		id := decodeID(key[len(prefix):])
		if id == exclude {
			continue
		}
		more, err := visit(id)
		if err != nil || !more {
			return err
		}
	}
	return nil
}
