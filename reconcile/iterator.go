// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reconcile

import (
	"context"
	"errors"

	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/storage"
)

const (
	// DefaultBatchSize is the default number of documents to fetch in each batch
	DefaultBatchSize = 100
)

// DocumentIterator iterates over all document records in batches.
type DocumentIterator struct {
	documents *storage.DocumentRepository
	batchSize int
}

// NewDocumentIterator creates a new document iterator.
// batchSize: number of documents to fetch in each batch (must be > 0)
func NewDocumentIterator(documents *storage.DocumentRepository, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &DocumentIterator{
		documents: documents,
		batchSize: batchSize,
	}
}

// ForEach iterates over all document records, calling fn for each batch.
// Iteration stops on first error from fn or when all documents are processed.
// Documents removed after listing are skipped.
// Context cancellation is checked between batches.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func([]*core.DocumentRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids, err := it.documents.ListIDs(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < len(ids); i += it.batchSize {
		end := min(i+it.batchSize, len(ids))

		batch := make([]*core.DocumentRecord, 0, end-i)
		for _, id := range ids[i:end] {
			record, err := it.documents.Get(ctx, id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			batch = append(batch, record)
		}

		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}

		// Check context after each batch
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
