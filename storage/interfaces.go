package storage

import (
	"context"

	"github.com/poiesic/ragquota/core"
)

// VectorStore is the capacity-limited vector index.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// Upsert stores the records in a single call. Records with an existing ID are replaced.
	Upsert(ctx context.Context, records ...core.VectorRecord) error

	// Query returns up to topK records most similar to vector.
	// Results are ordered by score (highest first) and carry their full metadata.
	Query(ctx context.Context, vector []float32, topK int) ([]core.StoredMatch, error)

	// DeleteByIDs removes the records with the given IDs in a single call.
	// Unknown IDs are ignored.
	DeleteByIDs(ctx context.Context, ids ...string) error

	// Count returns the number of records physically held by the store.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// KeyValueStore holds document metadata and the quota counter.
// Implementations must be thread-safe and support concurrent access.
type KeyValueStore interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Update atomically replaces the value under key with the result of fn.
	// fn receives nil when the key is missing; returning a nil value deletes
	// the key. fn may run more than once when concurrent writers conflict.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error

	// List returns every key with the given prefix, in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}
