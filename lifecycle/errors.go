package lifecycle

import "errors"

var (
	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrTrackerRequired is returned when a quota tracker is not provided.
	ErrTrackerRequired = errors.New("quota tracker required")

	// ErrManagerRequired is returned when a scheduler is created without a manager.
	ErrManagerRequired = errors.New("lifecycle manager required")

	// ErrVectorDeleteFailed indicates the vector store could not remove a document's vectors.
	ErrVectorDeleteFailed = errors.New("vector delete failed")

	// ErrAccountingFailed indicates the quota counter could not be decremented.
	ErrAccountingFailed = errors.New("quota accounting failed")

	// ErrMetadataDeleteFailed indicates the document record could not be removed.
	ErrMetadataDeleteFailed = errors.New("document metadata delete failed")
)
