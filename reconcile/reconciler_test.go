package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/metrics"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/storage"
	"github.com/poiesic/ragquota/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingVectors fails Count a fixed number of times before delegating.
type countingVectors struct {
	storage.VectorStore
	failures int
	calls    int
}

func (c *countingVectors) Count(ctx context.Context) (int, error) {
	c.calls++
	if c.calls <= c.failures {
		return 0, errors.New("count unavailable")
	}
	return c.VectorStore.Count(ctx)
}

type fixture struct {
	vectors   *countingVectors
	documents *storage.DocumentRepository
	tracker   *quota.Tracker
	recorder  *metrics.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, vectorStore, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	recorder := &metrics.Recorder{}
	tracker, err := quota.NewTracker(kv, quota.WithEmitter(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	return &fixture{
		vectors:   &countingVectors{VectorStore: vectorStore},
		documents: storage.NewDocumentRepository(kv),
		tracker:   tracker,
		recorder:  recorder,
	}
}

// seed stores n vectors, optionally under a document record.
func (f *fixture) seed(t *testing.T, docID string, n int, withRecord bool) {
	t.Helper()
	ctx := context.Background()
	uploaded := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	ids := make([]string, 0, n)
	for i := range n {
		id := core.VectorID(docID, uploaded, i)
		ids = append(ids, id)
		require.NoError(t, f.vectors.Upsert(ctx, core.VectorRecord{
			ID:       id,
			Vector:   []float32{1, float32(i)},
			Metadata: core.ChunkMetadata{DocumentID: docID, ChunkIndex: i},
		}))
	}
	if withRecord {
		require.NoError(t, f.documents.Put(ctx, &core.DocumentRecord{
			ID:         docID,
			ChunkCount: n,
			UploadedAt: uploaded,
			VectorIDs:  ids,
		}))
	}
}

func (f *fixture) reconciler(t *testing.T) *Reconciler {
	t.Helper()
	config := DefaultConfig()
	config.BatchSize = 2
	config.RetryDelay = time.Millisecond
	r, err := NewReconciler(f.vectors, f.documents, f.tracker, config, nil)
	require.NoError(t, err)
	return r
}

func TestNewReconciler_RequiresDependencies(t *testing.T) {
	f := newFixture(t)

	_, err := NewReconciler(nil, f.documents, f.tracker, nil, nil)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewReconciler(f.vectors, nil, f.tracker, nil, nil)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewReconciler(f.vectors, f.documents, nil, nil, nil)
	assert.ErrorIs(t, err, ErrTrackerRequired)
}

func TestReconciler_NoDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "doc-1", 3, true)
	f.seed(t, "doc-2", 2, true)
	_, err := f.tracker.AdjustCount(ctx, 5, "seed")
	require.NoError(t, err)

	report, err := f.reconciler(t).Run(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Tracked)
	assert.Equal(t, 5, report.Stored)
	assert.Equal(t, 5, report.Referenced)
	assert.Equal(t, 2, report.Documents)
	assert.Zero(t, report.Drift)
	assert.Zero(t, report.Unreferenced)
	assert.False(t, report.Applied)
	assert.Equal(t, 5, report.Count)
}

func TestReconciler_ReportsWithoutApplying(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "doc-1", 4, true)
	_, err := f.tracker.AdjustCount(ctx, 1, "seed")
	require.NoError(t, err)

	report, err := f.reconciler(t).Run(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Drift)
	assert.False(t, report.Applied)
	assert.Equal(t, 1, report.Count)

	count, err := f.tracker.CurrentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "counter must not change in dry run")
}

func TestReconciler_AppliesPositiveDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "doc-1", 4, true)

	report, err := f.reconciler(t).Run(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Drift)
	assert.True(t, report.Applied)
	assert.Equal(t, 4, report.Count)

	last, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, metrics.DriftReason(4), last.Reason)
	assert.Equal(t, 4, last.Delta)
}

func TestReconciler_AppliesNegativeDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "doc-1", 2, true)
	_, err := f.tracker.AdjustCount(ctx, 10, "seed")
	require.NoError(t, err)

	report, err := f.reconciler(t).Run(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, -8, report.Drift)
	assert.Equal(t, 2, report.Count)
	assert.Contains(t, f.recorder.Reasons(), "reconcile_drift_-8")
}

func TestReconciler_CountsUnreferencedVectors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "doc-1", 2, true)
	f.seed(t, "orphan", 3, false)

	report, err := f.reconciler(t).Run(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Stored)
	assert.Equal(t, 2, report.Referenced)
	assert.Equal(t, 3, report.Unreferenced)
}

func TestReconciler_RetriesCount(t *testing.T) {
	f := newFixture(t)
	f.vectors.failures = 2

	report, err := f.reconciler(t).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, f.vectors.calls)
	assert.Zero(t, report.Stored)
	// Elapsed covers the backoff between attempts
	assert.GreaterOrEqual(t, report.Elapsed, 2*time.Millisecond)
}

func TestReconciler_CountFailure(t *testing.T) {
	f := newFixture(t)
	f.vectors.failures = 10

	_, err := f.reconciler(t).Run(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count vectors")
	assert.Equal(t, DefaultConfig().MaxRetries, f.vectors.calls)
}

func TestReconciler_WritesProgress(t *testing.T) {
	f := newFixture(t)
	for i := range 3 {
		f.seed(t, fmt.Sprintf("doc-%d", i), 1, true)
	}

	var out bytes.Buffer
	r, err := NewReconciler(f.vectors, f.documents, f.tracker, DefaultConfig(), &out)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Scanning 3 documents")
	assert.Contains(t, out.String(), "3/3 documents")
}
