package server

import "github.com/poiesic/ragquota/core"

// EmbedRequest is the body of POST /embed.
type EmbedRequest struct {
	Texts    []string               `json:"texts"`
	Metadata *core.DocumentMetadata `json:"metadata,omitempty"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// DeleteRequest is the body of DELETE /documents.
type DeleteRequest struct {
	DocumentID string `json:"documentId"`
}

// ContextRequest is the body of POST /context.
type ContextRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

// ContextResponse carries the assembled retrieval context.
type ContextResponse struct {
	Context string `json:"context"`
}

// QuotaResponse is the body of GET /metrics/quota.
type QuotaResponse struct {
	Count       int     `json:"count"`
	Limit       int     `json:"limit"`
	PercentUsed float64 `json:"percentUsed"`
	Timestamp   string  `json:"timestamp"`
}

// ErrorResponse is the body of every rejected request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
