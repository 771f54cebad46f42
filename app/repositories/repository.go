package repositories

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// maxTxnAttempts bounds how often a conflicting transaction is replayed.
const maxTxnAttempts = 50

// BadgerStore implements Store on top of BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	run txRunner
}

// OpenBadger opens the database at path. An empty path opens an in-memory
// database, which is what the tests use.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger at %q", path)
	}
	return db, nil
}

// NewBadgerStore opens (or creates) a store at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	db, err := OpenBadger(path)
	if err != nil {
		return nil, err
	}
	return NewBadgerStoreWithDB(db), nil
}

// NewBadgerStoreWithDB wraps an already opened database.
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, run: txRunner{db: db}}
}

func (s *BadgerStore) Posts() PostRepository {
	return &BadgerPostRepository{run: s.run}
}

func (s *BadgerStore) Attachments() AttachmentRepository {
	return &BadgerAttachmentRepository{run: s.run}
}

func (s *BadgerStore) Users() UserRepository {
	return &BadgerUserRepository{run: s.run}
}

// Atomic runs fn inside one read-write transaction. Conflicts with
// concurrent transactions replay fn from scratch.
func (s *BadgerStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	if s.run.txn != nil {
		return fn(s)
	}
	return updateWithRetry(ctx, s.db, func(txn *badger.Txn) error {
		return fn(&BadgerStore{db: s.db, run: txRunner{db: s.db, txn: txn}})
	})
}

// DB exposes the underlying database for maintenance commands.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

// Clear drops every key, sequences included.
func (s *BadgerStore) Clear() error {
	return s.db.DropAll()
}

func (s *BadgerStore) Close() error {
	if s.run.txn != nil {
		return nil
	}
	return s.db.Close()
}

// txRunner executes either against its own transaction (inside Atomic) or
// opens a fresh one per call.
type txRunner struct {
	db  *badger.DB
	txn *badger.Txn
}

func (r txRunner) view(fn func(txn *badger.Txn) error) error {
	if r.txn != nil {
		return fn(r.txn)
	}
	return r.db.View(fn)
}

func (r txRunner) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if r.txn != nil {
		return fn(r.txn)
	}
	return updateWithRetry(ctx, r.db, fn)
}

func updateWithRetry(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return errors.Wrap(err, "transaction kept conflicting")
}
