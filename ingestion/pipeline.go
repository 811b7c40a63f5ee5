package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/ragquota/ai"
	"github.com/poiesic/ragquota/chunker"
	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/metrics"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/poiesic/ragquota/ingestion")

// Pipeline turns raw texts into stored, counted vectors and a document record.
type Pipeline struct {
	vectors   storage.VectorStore
	documents *storage.DocumentRepository
	tracker   *quota.Tracker
	embedder  ai.Embedder
	chunkSize int
	now       func() time.Time
	logger    *slog.Logger

	mu        sync.Mutex
	lastStamp time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunkSize sets the maximum chunk size in characters.
// Default is chunker.DefaultMaxSize.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		if size <= 0 {
			return fmt.Errorf("chunk size must be positive, got %d", size)
		}
		p.chunkSize = size
		return nil
	}
}

// WithClock sets the clock used for document IDs and insertion timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	vectors storage.VectorStore,
	documents *storage.DocumentRepository,
	tracker *quota.Tracker,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if tracker == nil {
		return nil, ErrTrackerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		vectors:   vectors,
		documents: documents,
		tracker:   tracker,
		embedder:  embedder,
		chunkSize: chunker.DefaultMaxSize,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")
	return p, nil
}

// Ingest chunks texts, admits the whole batch against the quota, embeds it in
// one call, stores the vectors, counts them and records the document.
//
// Admission is all or nothing: a denied batch stores nothing and leaves the
// counter unchanged. Every failure, including a panic, is reported through the
// returned Result.
func (p *Pipeline) Ingest(ctx context.Context, texts []string, meta core.DocumentMetadata) (result *Result) {
	ctx, span := tracer.Start(ctx, "ingestion.Ingest")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, r)
			p.logger.Error("recovered from panic during ingestion", "panic", r)
			result = failure(meta.DocumentID, err)
		}
		span.SetAttributes(
			attribute.String("ragquota.document.id", result.DocumentID),
			attribute.Int("ragquota.vectors", len(result.VectorIDs)),
		)
		if !result.Success {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Error)
		}
	}()

	return p.ingest(ctx, texts, meta)
}

func (p *Pipeline) ingest(ctx context.Context, texts []string, meta core.DocumentMetadata) *Result {
	if err := core.ValidateTexts(texts); err != nil {
		return failure(meta.DocumentID, err)
	}

	now := p.stamp(p.now().UTC())
	documentID := meta.DocumentID
	if documentID == "" {
		var err error
		if documentID, now, err = p.newDocumentID(ctx, now); err != nil {
			p.logger.Error("error generating document id", "err", err)
			return failure("", fmt.Errorf("%w: %w", ErrMetadataFailed, err))
		}
	}
	logger := p.logger.With("document", documentID)

	chunks := p.chunk(texts, meta, documentID, now)
	if len(chunks) == 0 {
		return failure(documentID, core.NewValidationError("texts", core.ErrEmptyContent))
	}

	reservation, admission, err := p.tracker.Reserve(ctx, len(chunks))
	if err != nil {
		logger.Error("admission check failed", "err", err)
		return failure(documentID, fmt.Errorf("%w: %w", ErrAccountingFailed, err))
	}
	if reservation == nil {
		logger.Warn("ingestion denied by quota",
			"current", admission.Current,
			"limit", admission.Limit,
			"requested", admission.Requested,
			"available", admission.Available)
		return failure(documentID, admission.Err())
	}
	defer reservation.Release()

	records, err := p.embed(ctx, chunks)
	if err != nil {
		logger.Error("error generating embeddings", "err", err)
		return failure(documentID, err)
	}

	if err := p.vectors.Upsert(ctx, records...); err != nil {
		logger.Error("error storing vectors", "err", err)
		return failure(documentID, fmt.Errorf("%w: %w", ErrUpsertFailed, err))
	}

	vectorIDs := make([]string, len(records))
	for i, record := range records {
		vectorIDs[i] = record.ID
	}

	if _, err := reservation.Commit(ctx, len(records), metrics.UpsertReason(documentID)); err != nil {
		logger.Error("error counting stored vectors", "err", err)
		p.discardVectors(ctx, logger, vectorIDs)
		return failure(documentID, fmt.Errorf("%w: %w", ErrAccountingFailed, err))
	}

	if err := p.saveDocument(ctx, documentID, meta, now, vectorIDs); err != nil {
		logger.Error("error writing document record", "err", err)
		p.compensate(ctx, logger, documentID, vectorIDs)
		return failure(documentID, fmt.Errorf("%w: %w", ErrMetadataFailed, err))
	}

	logger.Info("ingested document", "chunks", len(chunks), "vectors", len(vectorIDs))
	return success(documentID, vectorIDs)
}

// saveDocument writes the document record. Vectors of an existing record with
// the same ID are kept in its vector list so they stay deletable. The merge is
// a single atomic update so concurrent ingests into one document all land.
func (p *Pipeline) saveDocument(ctx context.Context, documentID string, meta core.DocumentMetadata, now time.Time, vectorIDs []string) error {
	return p.documents.Update(ctx, documentID, func(existing *core.DocumentRecord) (*core.DocumentRecord, error) {
		record := &core.DocumentRecord{
			ID:         documentID,
			Name:       meta.Name,
			Type:       meta.Type,
			ChunkCount: len(vectorIDs),
			UploadedAt: now,
			VectorIDs:  vectorIDs,
		}
		if existing == nil {
			return record, nil
		}

		record.VectorIDs = append(append([]string{}, existing.VectorIDs...), vectorIDs...)
		record.ChunkCount = existing.ChunkCount + len(vectorIDs)
		if record.Name == "" {
			record.Name = existing.Name
		}
		if record.Type == "" {
			record.Type = existing.Type
		}
		return record, nil
	})
}

// stamp returns the insertion time used in generated IDs. Stamps are issued
// in strictly increasing milliseconds so two ingests never share vector IDs.
func (p *Pipeline) stamp(now time.Time) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	stamp := now.Truncate(time.Millisecond)
	if !stamp.After(p.lastStamp) {
		stamp = p.lastStamp.Add(time.Millisecond)
	}
	p.lastStamp = stamp
	return stamp
}

// newDocumentID generates a doc-{unixMillis} ID that no stored record uses yet.
func (p *Pipeline) newDocumentID(ctx context.Context, stamp time.Time) (string, time.Time, error) {
	for {
		id := core.NewDocumentID(stamp)
		_, err := p.documents.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return id, stamp, nil
		}
		if err != nil {
			return "", stamp, err
		}
		stamp = p.stamp(stamp)
	}
}

// discardVectors removes vectors that were stored but never counted.
func (p *Pipeline) discardVectors(ctx context.Context, logger *slog.Logger, vectorIDs []string) {
	ctx = context.WithoutCancel(ctx)
	if err := p.vectors.DeleteByIDs(ctx, vectorIDs...); err != nil {
		logger.Error("orphaned vectors left in store", "vector_ids", vectorIDs, "err", err)
	}
}

// compensate reverses a stored and counted batch whose document record could not be written.
func (p *Pipeline) compensate(ctx context.Context, logger *slog.Logger, documentID string, vectorIDs []string) {
	ctx = context.WithoutCancel(ctx)
	if err := p.vectors.DeleteByIDs(ctx, vectorIDs...); err != nil {
		logger.Error("orphaned vectors left in store", "vector_ids", vectorIDs, "err", err)
		return
	}
	if _, err := p.tracker.AdjustCount(ctx, -len(vectorIDs), metrics.DeleteReason(documentID)); err != nil {
		logger.Error("error reversing vector count", "vectors", len(vectorIDs), "err", err)
		return
	}
	logger.Info("rolled back ingestion", "vectors", len(vectorIDs))
}
