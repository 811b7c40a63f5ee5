package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/storage"
)

const vectorKeyPrefix = "vector:"

func makeVectorKey(id string) []byte {
	return []byte(vectorKeyPrefix + id)
}

// VectorStore implements storage.VectorStore on a Backend.
// Queries scan every stored vector, which suits the small indexes this
// system runs against.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a vector store over backend.
// The backend stays owned by the caller.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{backend: backend}
}

// Upsert stores all records in one transaction.
func (s *VectorStore) Upsert(ctx context.Context, records ...core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.backend.update(ctx, func(tx *badger.Txn) error {
		for i := range records {
			if records[i].ID == "" {
				return fmt.Errorf("%w: vector record without id", storage.ErrInvalidQuery)
			}
			data, err := json.Marshal(&records[i])
			if err != nil {
				return fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
			}
			if err := tx.Set(makeVectorKey(records[i].ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query ranks every stored vector by cosine similarity to vector.
func (s *VectorStore) Query(ctx context.Context, vector []float32, topK int) ([]core.StoredMatch, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}

	var results []core.StoredMatch
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorKeyPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record core.VectorRecord
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
			}
			if len(record.Vector) == 0 {
				continue
			}
			results = append(results, core.StoredMatch{
				ID:       record.ID,
				Score:    cosineSimilarity(vector, record.Vector),
				Metadata: record.Metadata,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortStableFunc(results, func(a, b core.StoredMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteByIDs removes the records in one transaction.
func (s *VectorStore) DeleteByIDs(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.backend.update(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeVectorKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		count = len(keysWithPrefix(tx, []byte(vectorKeyPrefix)))
		return nil
	})
	return count, err
}

// Close is a no-op; the backend is closed by its owner.
func (s *VectorStore) Close() error {
	return nil
}

// cosineSimilarity calculates the cosine similarity of two vectors.
// Vectors of different length are compared over their common prefix.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
