package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragquota/storage"
)

// KeyValueStore implements storage.KeyValueStore on a Backend.
type KeyValueStore struct {
	backend *Backend
}

var _ storage.KeyValueStore = (*KeyValueStore)(nil)

// NewKeyValueStore creates a key-value store over backend.
// The backend stays owned by the caller.
func NewKeyValueStore(backend *Backend) *KeyValueStore {
	return &KeyValueStore{backend: backend}
}

// Get returns the value stored under key.
func (s *KeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores value under key.
func (s *KeyValueStore) Put(ctx context.Context, key string, value []byte) error {
	return s.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Set([]byte(key), value)
	})
}

// Delete removes key.
func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	return s.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Delete([]byte(key))
	})
}

// MaxUpdateAttempts bounds how often Update reruns after a write conflict.
const MaxUpdateAttempts = 100

// Update runs fn in a read-write transaction and commits its result. The
// transaction is retried when badger reports a conflict with a concurrent
// writer of the same key.
func (s *KeyValueStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	var err error
	for attempt := 0; attempt < MaxUpdateAttempts; attempt++ {
		err = s.backend.update(ctx, func(tx *badger.Txn) error {
			var current []byte
			item, err := tx.Get([]byte(key))
			switch {
			case err == nil:
				if current, err = item.ValueCopy(nil); err != nil {
					return err
				}
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}

			next, err := fn(current)
			if err != nil {
				return err
			}
			if next == nil {
				return tx.Delete([]byte(key))
			}
			return tx.Set([]byte(key), next)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", storage.ErrConflict, err)
}

// List returns every key with the given prefix.
func (s *KeyValueStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		keys = keysWithPrefix(tx, []byte(prefix))
		return nil
	})
	return keys, err
}

// Close is a no-op; the backend is closed by its owner.
func (s *KeyValueStore) Close() error {
	return nil
}
