package ingestion

import "errors"

var (
	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrTrackerRequired is returned when a quota tracker is not provided.
	ErrTrackerRequired = errors.New("quota tracker required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingFailed indicates the embedding service call failed.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrUpsertFailed indicates the vector store rejected the batch.
	ErrUpsertFailed = errors.New("vector upsert failed")

	// ErrAccountingFailed indicates the quota counter could not be updated.
	ErrAccountingFailed = errors.New("quota accounting failed")

	// ErrMetadataFailed indicates the document record could not be written.
	ErrMetadataFailed = errors.New("document metadata write failed")

	// ErrPanic indicates the pipeline recovered from a panic.
	ErrPanic = errors.New("ingestion panicked")
)
