package repositories

import (
	"context"
	"time"

	"murmur/app/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// BadgerAttachmentRepository implements AttachmentRepository using BadgerDB.
// Unlinked attachments are additionally indexed by creation time under
// attachment-unlinked:<nanos><id>; the entry is dropped once linked.
type BadgerAttachmentRepository struct {
	run txRunner
}

func (r *BadgerAttachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	return r.run.update(ctx, func(txn *badger.Txn) error {
		id, err := getNextID(txn, AttachmentSeqKey)
		if err != nil {
			return errors.Wrap(err, "next attachment id")
		}
		attachment.ID = id
		attachment.BeforeCreate()
		return r.put(txn, attachment)
	})
}

func (r *BadgerAttachmentRepository) GetByID(ctx context.Context, id int64) (*models.Attachment, error) {
	var attachment models.Attachment
	err := r.run.view(func(txn *badger.Txn) error {
		return getEntity(txn, attachmentKey(id), &attachment)
	})
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

// Update overwrites an existing attachment and keeps the unlinked index in step.
func (r *BadgerAttachmentRepository) Update(ctx context.Context, attachment *models.Attachment) error {
	return r.run.update(ctx, func(txn *badger.Txn) error {
		var existing models.Attachment
		if err := getEntity(txn, attachmentKey(attachment.ID), &existing); err != nil {
			return err
		}
		// CreatedAt is immutable and part of the index key.
		attachment.CreatedAt = existing.CreatedAt
		return r.put(txn, attachment)
	})
}

func (r *BadgerAttachmentRepository) Delete(ctx context.Context, id int64) error {
	return r.run.update(ctx, func(txn *badger.Txn) error {
		var existing models.Attachment
		if err := getEntity(txn, attachmentKey(id), &existing); err != nil {
			return err
		}
		if err := txn.Delete(unlinkedKey(existing.CreatedAt, id)); err != nil {
			return err
		}
		return txn.Delete(attachmentKey(id))
	})
}

// FindUnlinkedBefore walks the unlinked index up to threshold.
func (r *BadgerAttachmentRepository) FindUnlinkedBefore(ctx context.Context, threshold time.Time) ([]*models.Attachment, error) {
	attachments := []*models.Attachment{}
	prefix := []byte(UnlinkedKeyPrefix)
	err := r.run.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		limit := threshold.UnixNano()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			if len(key) != len(prefix)+16 {
				continue
			}
			if decodeID(key[len(prefix):len(prefix)+8]) >= limit {
				return nil
			}
			id := decodeID(key[len(prefix)+8:])
			var attachment models.Attachment
			if err := getEntity(txn, attachmentKey(id), &attachment); err != nil {
				return errors.Wrapf(err, "load attachment %d", id)
			}
			attachments = append(attachments, &attachment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *BadgerAttachmentRepository) put(txn *badger.Txn, attachment *models.Attachment) error {
	if err := setEntity(txn, attachmentKey(attachment.ID), attachment); err != nil {
		return err
	}
	idx := unlinkedKey(attachment.CreatedAt, attachment.ID)
	if attachment.IsLinked() {
		return txn.Delete(idx)
	}
	return txn.Set(idx, nil)
}
