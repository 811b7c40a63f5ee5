package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/metrics"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/storage"
)

// Config holds configuration for a reconciliation run.
type Config struct {
	// BatchSize is the number of documents read per batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for the vector store count
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Report compares the tracked counter with what the stores hold.
type Report struct {
	// Tracked is the quota counter before any correction.
	Tracked int `json:"tracked"`

	// Stored is the number of vectors the vector store holds.
	Stored int `json:"stored"`

	// Referenced is the number of vector IDs listed by document records.
	Referenced int `json:"referenced"`

	// Documents is the number of document records scanned.
	Documents int `json:"documents"`

	// Drift is Stored minus Tracked.
	Drift int `json:"drift"`

	// Unreferenced is the number of stored vectors no document lists.
	Unreferenced int `json:"unreferenced"`

	// Applied reports whether the counter was corrected.
	Applied bool `json:"applied"`

	// Count is the counter after the run.
	Count int `json:"count"`

	Elapsed time.Duration `json:"elapsed"`
}

// Reconciler detects and optionally corrects quota counter drift.
type Reconciler struct {
	vectors   storage.VectorStore
	documents *storage.DocumentRepository
	tracker   *quota.Tracker
	config    *Config
	progress  io.Writer
	logger    *slog.Logger
}

// NewReconciler creates a new reconciler.
// progress: where to write progress output (typically os.Stderr); nil discards it.
func NewReconciler(
	vectors storage.VectorStore,
	documents *storage.DocumentRepository,
	tracker *quota.Tracker,
	config *Config,
	progress io.Writer,
) (*Reconciler, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if tracker == nil {
		return nil, ErrTrackerRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reconciler{
		vectors:   vectors,
		documents: documents,
		tracker:   tracker,
		config:    config,
		progress:  progress,
		logger:    slog.Default().With("component", "reconcile"),
	}, nil
}

// Run counts the vectors the stores hold and compares them with the tracked
// counter. With apply set and a non-zero drift the counter is moved to the
// vector store's count through quota.Tracker.AdjustCount.
//
// Run assumes no ingestion or deletion is in flight.
func (r *Reconciler) Run(ctx context.Context, apply bool) (*Report, error) {
	ids, err := r.documents.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	tracker := NewProgressTracker(r.progress, len(ids), r.config.ReportInterval)
	tracker.Start()
	report := &Report{}

	tracked, err := r.tracker.CurrentCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("read counter: %w", err)
	}
	report.Tracked = tracked

	err = RetryWithBackoff(ctx, func() error {
		stored, err := r.vectors.Count(ctx)
		if err != nil {
			return err
		}
		report.Stored = stored
		return nil
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("count vectors: %w", err)
	}

	fmt.Fprintf(r.progress, "Scanning %d documents (batch size: %d)\n", len(ids), r.config.BatchSize)

	iterator := NewDocumentIterator(r.documents, r.config.BatchSize)
	err = iterator.ForEach(ctx, func(records []*core.DocumentRecord) error {
		for _, record := range records {
			report.Documents++
			report.Referenced += len(record.VectorIDs)
		}
		tracker.Increment(len(records))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	tracker.Finish()

	report.Drift = report.Stored - report.Tracked
	report.Unreferenced = max(0, report.Stored-report.Referenced)
	report.Count = tracked

	if report.Unreferenced > 0 {
		r.logger.Warn("vectors without a document record", "count", report.Unreferenced)
	}

	if report.Drift != 0 {
		r.logger.Warn("quota counter drift detected",
			"tracked", report.Tracked,
			"stored", report.Stored,
			"drift", report.Drift)
		if apply {
			count, err := r.tracker.AdjustCount(ctx, report.Drift, metrics.DriftReason(report.Drift))
			if err != nil {
				return nil, fmt.Errorf("correct counter: %w", err)
			}
			report.Applied = true
			report.Count = count
			r.logger.Info("quota counter corrected", "count", count)
		}
	}

	report.Elapsed = tracker.Elapsed()
	return report, nil
}
