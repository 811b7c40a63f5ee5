package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/ragquota/core"
)

// DocumentKeyPrefix is the key space holding document records.
const DocumentKeyPrefix = "document:"

// DocumentKey returns the key of a document record.
func DocumentKey(documentID string) string {
	return DocumentKeyPrefix + documentID
}

// DocumentRepository is a typed view of document records held in a KeyValueStore.
type DocumentRepository struct {
	kv KeyValueStore
}

// NewDocumentRepository creates a document repository over kv.
func NewDocumentRepository(kv KeyValueStore) *DocumentRepository {
	return &DocumentRepository{kv: kv}
}

// Get retrieves a document record.
// Returns ErrNotFound if the document doesn't exist.
func (r *DocumentRepository) Get(ctx context.Context, documentID string) (*core.DocumentRecord, error) {
	data, err := r.kv.Get(ctx, DocumentKey(documentID))
	if err != nil {
		return nil, err
	}
	return UnmarshalDocumentRecord(data)
}

// Put stores a document record under its ID.
func (r *DocumentRepository) Put(ctx context.Context, record *core.DocumentRecord) error {
	if record.ID == "" {
		return fmt.Errorf("%w: document record without id", ErrInvalidQuery)
	}
	data, err := MarshalDocumentRecord(record)
	if err != nil {
		return err
	}
	return r.kv.Put(ctx, DocumentKey(record.ID), data)
}

// Update atomically reads, changes and writes back the record of documentID.
// fn receives nil when no record exists; returning nil deletes the record.
func (r *DocumentRepository) Update(ctx context.Context, documentID string, fn func(record *core.DocumentRecord) (*core.DocumentRecord, error)) error {
	return r.kv.Update(ctx, DocumentKey(documentID), func(current []byte) ([]byte, error) {
		var record *core.DocumentRecord
		if current != nil {
			var err error
			if record, err = UnmarshalDocumentRecord(current); err != nil {
				return nil, err
			}
		}

		next, err := fn(record)
		if err != nil || next == nil {
			return nil, err
		}
		if next.ID != documentID {
			return nil, fmt.Errorf("%w: record id %q stored under %q", ErrInvalidQuery, next.ID, documentID)
		}
		return MarshalDocumentRecord(next)
	})
}

// Delete removes a document record. Deleting a missing record is not an error.
func (r *DocumentRepository) Delete(ctx context.Context, documentID string) error {
	return r.kv.Delete(ctx, DocumentKey(documentID))
}

// ListIDs returns the IDs of all stored documents.
func (r *DocumentRepository) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := r.kv.List(ctx, DocumentKeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, DocumentKeyPrefix))
	}
	return ids, nil
}

// List returns all stored document records.
// Records removed between listing and reading are skipped.
func (r *DocumentRepository) List(ctx context.Context) ([]*core.DocumentRecord, error) {
	ids, err := r.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*core.DocumentRecord, 0, len(ids))
	for _, id := range ids {
		record, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
