package ingestion

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/poiesic/ragquota/ai"
	"github.com/poiesic/ragquota/chunker"
	"github.com/poiesic/ragquota/core"
)

// chunk runs every text through the chunker and flattens the result into one
// ordered list. ChunkIndex is the position in the flattened list.
func (p *Pipeline) chunk(texts []string, meta core.DocumentMetadata, documentID string, now time.Time) []core.ChunkMetadata {
	var chunks []core.ChunkMetadata
	for textIndex, text := range texts {
		for _, piece := range chunker.Split(text, p.chunkSize) {
			chunks = append(chunks, core.ChunkMetadata{
				DocumentID:   documentID,
				DocumentName: meta.Name,
				DocumentType: meta.Type,
				Page:         meta.Page,
				TextIndex:    textIndex,
				ChunkIndex:   len(chunks),
				Preview:      core.Preview(piece),
				FullText:     piece,
				InsertedAt:   now,
				Attributes:   maps.Clone(meta.Attributes),
			})
		}
	}
	return chunks
}

// embed generates one embedding per chunk in a single batch call and builds
// the vector records in input order.
func (p *Pipeline) embed(ctx context.Context, chunks []core.ChunkMetadata) ([]core.VectorRecord, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.FullText
	}

	p.logger.Debug("generating embeddings for chunks", "chunks", len(texts))
	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if err := ai.CheckEmbeddings(embeddings, len(chunks)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	records := make([]core.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = core.VectorRecord{
			ID:       core.VectorID(c.DocumentID, c.InsertedAt, c.ChunkIndex),
			Vector:   embeddings[i],
			Metadata: c,
		}
	}
	return records, nil
}
