package server

import "errors"

var (
	// ErrPipelineRequired is returned when an ingestion pipeline is not provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")

	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrManagerRequired is returned when a lifecycle manager is not provided.
	ErrManagerRequired = errors.New("lifecycle manager required")

	// ErrTrackerRequired is returned when a quota tracker is not provided.
	ErrTrackerRequired = errors.New("quota tracker required")

	// ErrTrailingData indicates a request body held more than one JSON value.
	ErrTrailingData = errors.New("request body must contain a single JSON object")
)
