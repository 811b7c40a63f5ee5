package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/metrics"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultRetentionDays is how long documents are kept before a sweep removes them.
const DefaultRetentionDays = 30

var tracer = otel.Tracer("github.com/poiesic/ragquota/lifecycle")

// DeleteResult is the outcome of deleting one document.
type DeleteResult struct {
	Success      bool   `json:"success"`
	DocumentID   string `json:"documentId"`
	DeletedCount int    `json:"deletedCount"`
	Error        string `json:"error,omitempty"`

	// Err keeps the typed cause of a failure for errors.Is checks.
	Err error `json:"-"`
}

// SweepResult summarizes one cleanup sweep.
type SweepResult struct {
	Cutoff           time.Time     `json:"cutoff"`
	Scanned          int           `json:"scanned"`
	DocumentsRemoved int           `json:"documentsRemoved"`
	VectorsRemoved   int           `json:"vectorsRemoved"`
	Failures         int           `json:"failures"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Manager removes documents on request and by age.
// Both paths release quota through the same routine.
type Manager struct {
	vectors   storage.VectorStore
	documents *storage.DocumentRepository
	tracker   *quota.Tracker
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager) error

// WithRetentionDays sets how many days documents are kept.
// Default is DefaultRetentionDays.
func WithRetentionDays(days int) Option {
	return func(m *Manager) error {
		if days <= 0 {
			return fmt.Errorf("retention days must be positive, got %d", days)
		}
		m.retention = time.Duration(days) * 24 * time.Hour
		return nil
	}
}

// WithClock sets the clock used to compute the sweep cutoff.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) error {
		if now != nil {
			m.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a lifecycle manager.
func NewManager(
	vectors storage.VectorStore,
	documents *storage.DocumentRepository,
	tracker *quota.Tracker,
	opts ...Option,
) (*Manager, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if tracker == nil {
		return nil, ErrTrackerRequired
	}

	m := &Manager{
		vectors:   vectors,
		documents: documents,
		tracker:   tracker,
		retention: DefaultRetentionDays * 24 * time.Hour,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.logger = m.logger.With("component", "lifecycle")
	return m, nil
}

// DeleteDocument removes a document's vectors, releases their quota and
// deletes its record. Deleting an unknown document, or one without vectors,
// succeeds with DeletedCount 0 and changes nothing.
func (m *Manager) DeleteDocument(ctx context.Context, documentID string) *DeleteResult {
	ctx, span := tracer.Start(ctx, "lifecycle.DeleteDocument")
	defer span.End()
	span.SetAttributes(attribute.String("ragquota.document.id", documentID))

	fail := func(err error) *DeleteResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &DeleteResult{DocumentID: documentID, Error: err.Error(), Err: err}
	}

	if err := core.ValidateDocumentID(documentID); err != nil {
		return fail(err)
	}

	record, err := m.documents.Get(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.Debug("delete of unknown document", "document", documentID)
		return &DeleteResult{Success: true, DocumentID: documentID}
	}
	if err != nil {
		m.logger.Error("error reading document record", "document", documentID, "err", err)
		return fail(err)
	}
	if len(record.VectorIDs) == 0 {
		return &DeleteResult{Success: true, DocumentID: documentID}
	}

	removed, err := m.removeDocument(ctx, record)
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.Int("ragquota.vectors", removed))
	return &DeleteResult{Success: true, DocumentID: documentID, DeletedCount: removed}
}

// Sweep removes every document uploaded before now minus the retention
// period. A document that fails to be removed is logged and counted and the
// sweep moves on.
func (m *Manager) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Sweep")
	defer span.End()

	start := time.Now()
	result := &SweepResult{Cutoff: m.now().UTC().Add(-m.retention)}

	records, err := m.documents.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list documents: %w", err)
	}
	result.Scanned = len(records)

	for _, record := range records {
		if !record.UploadedAt.Before(result.Cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}

		removed, err := m.removeDocument(ctx, record)
		if err != nil {
			result.Failures++
			continue
		}
		result.DocumentsRemoved++
		result.VectorsRemoved += removed
	}

	result.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("ragquota.sweep.documents", result.DocumentsRemoved),
		attribute.Int("ragquota.sweep.vectors", result.VectorsRemoved),
		attribute.Int("ragquota.sweep.failures", result.Failures),
	)
	m.logger.Info("cleanup sweep finished",
		"cutoff", result.Cutoff,
		"scanned", result.Scanned,
		"documents", result.DocumentsRemoved,
		"vectors", result.VectorsRemoved,
		"failures", result.Failures,
		"elapsed", result.Elapsed)
	return result, nil
}

// removeDocument deletes the record's vectors in one call, decrements the
// counter by their number and then deletes the record. The record stays in
// place when the vectors cannot be removed.
func (m *Manager) removeDocument(ctx context.Context, record *core.DocumentRecord) (int, error) {
	logger := m.logger.With("document", record.ID)
	n := len(record.VectorIDs)

	if n > 0 {
		if err := m.vectors.DeleteByIDs(ctx, record.VectorIDs...); err != nil {
			logger.Error("error deleting document vectors", "vectors", n, "err", err)
			return 0, fmt.Errorf("%w: %w", ErrVectorDeleteFailed, err)
		}
		if _, err := m.tracker.AdjustCount(ctx, -n, metrics.DeleteReason(record.ID)); err != nil {
			logger.Error("error releasing vector count", "vectors", n, "err", err)
			return 0, fmt.Errorf("%w: %w", ErrAccountingFailed, err)
		}
	}

	if err := m.dropVectors(ctx, record.ID, record.VectorIDs); err != nil {
		logger.Error("error deleting document record", "err", err)
		return 0, fmt.Errorf("%w: %w", ErrMetadataDeleteFailed, err)
	}

	logger.Info("removed document", "vectors", n)
	return n, nil
}

// dropVectors removes deleted vector IDs from the document record and deletes
// the record once none remain. Vectors merged in by a concurrent ingest after
// the record was read stay listed.
func (m *Manager) dropVectors(ctx context.Context, documentID string, deleted []string) error {
	gone := make(map[string]struct{}, len(deleted))
	for _, id := range deleted {
		gone[id] = struct{}{}
	}
	return m.documents.Update(ctx, documentID, func(record *core.DocumentRecord) (*core.DocumentRecord, error) {
		if record == nil {
			return nil, nil
		}
		remaining := make([]string, 0, len(record.VectorIDs))
		for _, id := range record.VectorIDs {
			if _, ok := gone[id]; !ok {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) == 0 {
			return nil, nil
		}
		record.VectorIDs = remaining
		record.ChunkCount = len(remaining)
		return record, nil
	})
}
