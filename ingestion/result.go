package ingestion

// Result is the outcome of one ingest call.
// Failures are reported here rather than as a returned error.
type Result struct {
	Success    bool     `json:"success"`
	DocumentID string   `json:"documentId,omitempty"`
	VectorIDs  []string `json:"vectorIds,omitempty"`
	Error      string   `json:"error,omitempty"`

	// Err keeps the typed cause of a failure for errors.Is checks.
	Err error `json:"-"`
}

func success(documentID string, vectorIDs []string) *Result {
	return &Result{
		Success:    true,
		DocumentID: documentID,
		VectorIDs:  vectorIDs,
	}
}

func failure(documentID string, err error) *Result {
	return &Result{
		Success:    false,
		DocumentID: documentID,
		Error:      err.Error(),
		Err:        err,
	}
}
