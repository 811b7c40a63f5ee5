package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

const (
	// PreviewLength is the number of characters kept in a chunk preview.
	PreviewLength = 200

	// DocumentIDPrefix prefixes generated document IDs.
	DocumentIDPrefix = "doc-"
)

// IDFromContent generates a deterministic 64-bit ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs.
func IDFromContent(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// NewDocumentID generates a document ID of the form doc-{unixMillis}.
func NewDocumentID(now time.Time) string {
	return fmt.Sprintf("%s%d", DocumentIDPrefix, now.UnixMilli())
}

// VectorID builds the vector record ID {documentId}-{insertionTimestamp}-{chunkIndex}.
func VectorID(documentID string, insertedAt time.Time, chunkIndex int) string {
	return fmt.Sprintf("%s-%d-%d", documentID, insertedAt.UnixMilli(), chunkIndex)
}

// DocumentMetadata is the caller-supplied description of an uploaded document.
type DocumentMetadata struct {
	DocumentID string            `json:"documentId,omitempty"`
	Name       string            `json:"name,omitempty"`
	Type       string            `json:"type,omitempty"`
	Page       int               `json:"page,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ChunkMetadata is attached to every vector record stored in the index.
type ChunkMetadata struct {
	DocumentID   string            `json:"documentId"`
	DocumentName string            `json:"documentName,omitempty"`
	DocumentType string            `json:"documentType,omitempty"`
	Page         int               `json:"page,omitempty"`
	TextIndex    int               `json:"textIndex"`
	ChunkIndex   int               `json:"chunkIndex"`
	Preview      string            `json:"text"`
	FullText     string            `json:"fullText"`
	InsertedAt   time.Time         `json:"timestamp"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// VectorRecord is a single embedding stored in the vector index.
type VectorRecord struct {
	ID       string        `json:"id"`
	Vector   []float32     `json:"vector"`
	Metadata ChunkMetadata `json:"metadata"`
}

// DocumentRecord maps a document to the vectors produced for it.
// VectorIDs is the only link from a document to its vectors.
type DocumentRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Type       string    `json:"type,omitempty"`
	ChunkCount int       `json:"chunkCount"`
	UploadedAt time.Time `json:"uploadedAt"`
	VectorIDs  []string  `json:"vectorIds"`
}

// MatchMetadata is the fixed projection of chunk metadata returned to query callers.
type MatchMetadata struct {
	Text         string    `json:"text"`
	DocumentID   string    `json:"documentId,omitempty"`
	DocumentName string    `json:"documentName,omitempty"`
	Page         int       `json:"page,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	FullText     string    `json:"fullText,omitempty"`
}

// Match is a ranked vector store hit.
type Match struct {
	ID       string        `json:"id"`
	Score    float32       `json:"score"`
	Metadata MatchMetadata `json:"metadata"`
}

// StoredMatch is a raw vector store hit before projection.
type StoredMatch struct {
	ID       string
	Score    float32
	Metadata ChunkMetadata
}

// Project shapes stored chunk metadata into the query result projection.
func (m StoredMatch) Project() Match {
	return Match{
		ID:    m.ID,
		Score: m.Score,
		Metadata: MatchMetadata{
			Text:         m.Metadata.Preview,
			DocumentID:   m.Metadata.DocumentID,
			DocumentName: m.Metadata.DocumentName,
			Page:         m.Metadata.Page,
			Timestamp:    m.Metadata.InsertedAt,
			FullText:     m.Metadata.FullText,
		},
	}
}

// Preview truncates text to at most PreviewLength characters.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return string(runes[:PreviewLength])
}
