package repositories

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

const (
	// Key prefixes for different entity types
	PostKeyPrefix       = "post:"
	AuthorPostKeyPrefix = "post-author:"
	AttachmentKeyPrefix = "attachment:"
	UnlinkedKeyPrefix   = "attachment-unlinked:"
	UserKeyPrefix       = "user:"
	UsernameKeyPrefix   = "username:"

	// Sequence keys for auto-incrementing IDs
	PostSeqKey       = "seq:post"
	AttachmentSeqKey = "seq:attachment"
	UserSeqKey       = "seq:user"
)

// getNextID gets the next available ID for a given sequence key. The read
// and write share txn, so concurrent writers conflict and one of them retries.
func getNextID(txn *badger.Txn, seqKey string) (int64, error) {
	var id int64
	item, err := txn.Get([]byte(seqKey))
	if err == badger.ErrKeyNotFound {
		id = 1
	} else if err != nil {
		return 0, err
	} else {
		err = item.Value(func(val []byte) error {
			if len(val) != 8 {
				return errors.Errorf("corrupt sequence %q", seqKey)
			}
			id = int64(binary.BigEndian.Uint64(val))
			return nil
		})
		if err != nil {
			return 0, err
		}
		id++
	}

	// Store new ID
	if err := txn.Set([]byte(seqKey), encodeID(id)); err != nil {
		return 0, err
	}

	return id, nil
}

// encodeID renders id big-endian so byte order matches numeric order.
func encodeID(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func decodeID(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func entityKey(prefix string, id int64) []byte {
	return append([]byte(prefix), encodeID(id)...)
}

func postKey(id int64) []byte {
	return entityKey(PostKeyPrefix, id)
}

func authorPrefix(authorID int64) []byte {
	return entityKey(AuthorPostKeyPrefix, authorID)
}

func authorPostKey(authorID, postID int64) []byte {
	return append(authorPrefix(authorID), encodeID(postID)...)
}

func attachmentKey(id int64) []byte {
	return entityKey(AttachmentKeyPrefix, id)
}

// unlinkedKey orders unlinked attachments by creation time, then id.
func unlinkedKey(createdAt time.Time, id int64) []byte {
	k := entityKey(UnlinkedKeyPrefix, createdAt.UnixNano())
	return append(k, encodeID(id)...)
}

func userKey(id int64) []byte {
	return entityKey(UserKeyPrefix, id)
}

func usernameKey(username string) []byte {
	return []byte(UsernameKeyPrefix + username)
}

// marshalEntity marshals an entity to JSON
func marshalEntity(entity interface{}) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal entity")
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, entity interface{}) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return errors.Wrap(err, "failed to unmarshal entity")
	}
	return nil
}

// getEntity loads key into entity, mapping a missing key to ErrNotFound.
func getEntity(txn *badger.Txn, key []byte, entity interface{}) error {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshalEntity(val, entity)
	})
}

// setEntity stores entity as JSON under key.
func setEntity(txn *badger.Txn, key []byte, entity interface{}) error {
	data, err := marshalEntity(entity)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
