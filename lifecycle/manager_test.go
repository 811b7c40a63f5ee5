package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/poiesic/ragquota/ai/mock"
	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/ingestion"
	"github.com/poiesic/ragquota/metrics"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/storage"
	"github.com/poiesic/ragquota/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

// flakyVectors fails DeleteByIDs for selected vector IDs.
type flakyVectors struct {
	storage.VectorStore
	failFor map[string]bool
	deletes int
}

func (f *flakyVectors) DeleteByIDs(ctx context.Context, ids ...string) error {
	f.deletes++
	for _, id := range ids {
		if f.failFor[id] {
			return errors.New("vector store unavailable")
		}
	}
	return f.VectorStore.DeleteByIDs(ctx, ids...)
}

type fixture struct {
	manager   *Manager
	pipeline  *ingestion.Pipeline
	vectors   *flakyVectors
	documents *storage.DocumentRepository
	tracker   *quota.Tracker
	recorder  *metrics.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, vectorStore, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	vectors := &flakyVectors{VectorStore: vectorStore, failFor: map[string]bool{}}
	recorder := &metrics.Recorder{}
	tracker, err := quota.NewTracker(kv, quota.WithEmitter(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	documents := storage.NewDocumentRepository(kv)
	clock := func() time.Time { return now }

	manager, err := NewManager(vectors, documents, tracker, WithClock(clock))
	require.NoError(t, err)
	pipeline, err := ingestion.NewPipeline(vectors, documents, tracker, mock.NewMockEmbedder(), ingestion.WithClock(clock))
	require.NoError(t, err)

	return &fixture{
		manager:   manager,
		pipeline:  pipeline,
		vectors:   vectors,
		documents: documents,
		tracker:   tracker,
		recorder:  recorder,
	}
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.tracker.CurrentCount(context.Background())
	require.NoError(t, err)
	return n
}

// seedDocument stores a document with n vectors uploaded at uploadedAt and counts them.
func (f *fixture) seedDocument(t *testing.T, id string, n int, uploadedAt time.Time) *core.DocumentRecord {
	t.Helper()
	ctx := context.Background()
	record := &core.DocumentRecord{ID: id, ChunkCount: n, UploadedAt: uploadedAt}
	var records []core.VectorRecord
	for i := 0; i < n; i++ {
		vid := core.VectorID(id, uploadedAt, i)
		record.VectorIDs = append(record.VectorIDs, vid)
		records = append(records, core.VectorRecord{
			ID:       vid,
			Vector:   mock.Vector(vid, 4),
			Metadata: core.ChunkMetadata{DocumentID: id, ChunkIndex: i, FullText: vid, InsertedAt: uploadedAt},
		})
	}
	require.NoError(t, f.vectors.Upsert(ctx, records...))
	_, err := f.tracker.AdjustCount(ctx, n, metrics.UpsertReason(id))
	require.NoError(t, err)
	require.NoError(t, f.documents.Put(ctx, record))
	return record
}

func TestNewManager_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := NewManager(nil, f.documents, f.tracker)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewManager(f.vectors, nil, f.tracker)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewManager(f.vectors, f.documents, nil)
	assert.ErrorIs(t, err, ErrTrackerRequired)

	_, err = NewManager(f.vectors, f.documents, f.tracker, WithRetentionDays(0))
	assert.Error(t, err)
}

func TestDeleteDocument_Unknown(t *testing.T) {
	f := newFixture(t)

	result := f.manager.DeleteDocument(context.Background(), "doc-missing")
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.DeletedCount)
	assert.Equal(t, 0, f.vectors.deletes)
	assert.Empty(t, f.recorder.Events())
}

func TestDeleteDocument_EmptyVectorList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.documents.Put(ctx, &core.DocumentRecord{ID: "doc-empty", UploadedAt: now}))

	result := f.manager.DeleteDocument(ctx, "doc-empty")
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.DeletedCount)
	assert.Equal(t, 0, f.vectors.deletes)

	// No mutation: the record is still there
	_, err := f.documents.Get(ctx, "doc-empty")
	assert.NoError(t, err)
}

func TestDeleteDocument_EmptyID(t *testing.T) {
	f := newFixture(t)

	result := f.manager.DeleteDocument(context.Background(), " ")
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, core.ErrValidation)
}

func TestDeleteDocument_IngestRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ingested := f.pipeline.Ingest(ctx, []string{"First. Second.", "Third."}, core.DocumentMetadata{DocumentID: "doc-rt"})
	require.True(t, ingested.Success, ingested.Error)
	n := len(ingested.VectorIDs)
	require.Equal(t, n, f.count(t))

	result := f.manager.DeleteDocument(ctx, "doc-rt")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, n, result.DeletedCount)

	assert.Equal(t, 0, f.count(t))
	stored, err := f.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
	_, err = f.documents.Get(ctx, "doc-rt")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	last, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, "delete_document_doc-rt", last.Reason)
	assert.Equal(t, -n, last.Delta)
	assert.Equal(t, 0, last.Count)

	// Deleting again is a no-op success
	again := f.manager.DeleteDocument(ctx, "doc-rt")
	assert.True(t, again.Success)
	assert.Equal(t, 0, again.DeletedCount)
	assert.Equal(t, 0, f.count(t))
}

func TestDeleteDocument_VectorFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.seedDocument(t, "doc-bad", 3, now)
	f.vectors.failFor[record.VectorIDs[0]] = true

	result := f.manager.DeleteDocument(ctx, "doc-bad")
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrVectorDeleteFailed)
	assert.Equal(t, 3, f.count(t))

	// A retry can still find the vector list
	got, err := f.documents.Get(ctx, "doc-bad")
	require.NoError(t, err)
	assert.Equal(t, record.VectorIDs, got.VectorIDs)

	delete(f.vectors.failFor, record.VectorIDs[0])
	retry := f.manager.DeleteDocument(ctx, "doc-bad")
	assert.True(t, retry.Success)
	assert.Equal(t, 3, retry.DeletedCount)
	assert.Equal(t, 0, f.count(t))
}

func TestSweep_Cutoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedDocument(t, "doc-old", 2, now.AddDate(0, 0, -31))
	f.seedDocument(t, "doc-older", 3, now.AddDate(0, 0, -90))
	f.seedDocument(t, "doc-edge", 1, now.AddDate(0, 0, -30))
	f.seedDocument(t, "doc-new", 4, now.AddDate(0, 0, -1))
	require.Equal(t, 10, f.count(t))

	result, err := f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -30), result.Cutoff)
	assert.Equal(t, 4, result.Scanned)
	assert.Equal(t, 2, result.DocumentsRemoved)
	assert.Equal(t, 5, result.VectorsRemoved)
	assert.Equal(t, 0, result.Failures)
	assert.GreaterOrEqual(t, result.Elapsed, time.Duration(0))

	ids, err := f.documents.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-edge", "doc-new"}, ids)
	assert.Equal(t, 5, f.count(t))
}

func TestSweep_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := now.AddDate(0, 0, -40)
	var bad *core.DocumentRecord
	for i := 0; i < 5; i++ {
		record := f.seedDocument(t, fmt.Sprintf("doc-%d", i), 2, old)
		if i == 2 {
			bad = record
		}
	}
	f.vectors.failFor[bad.VectorIDs[1]] = true

	result, err := f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.DocumentsRemoved)
	assert.Equal(t, 8, result.VectorsRemoved)
	assert.Equal(t, 1, result.Failures)

	ids, err := f.documents.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-2"}, ids)
	assert.Equal(t, 2, f.count(t))

	// Every removal reused the delete accounting path
	var deletes int
	for _, reason := range f.recorder.Reasons() {
		if (metrics.Event{Reason: reason}).Kind() == metrics.KindDelete {
			deletes++
		}
	}
	assert.Equal(t, 4, deletes)
}

func TestSweep_RetentionOption(t *testing.T) {
	f := newFixture(t)
	manager, err := NewManager(f.vectors, f.documents, f.tracker,
		WithRetentionDays(7), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	f.seedDocument(t, "doc-week", 1, now.AddDate(0, 0, -8))
	f.seedDocument(t, "doc-day", 1, now.AddDate(0, 0, -1))

	result, err := manager.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsRemoved)

	ids, err := f.documents.ListIDs(context.Background())
	require.NoError(t, err)
	assert.True(t, slices.Equal([]string{"doc-day"}, ids))
}

func TestSweep_RemovesRecordsWithoutVectors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.documents.Put(ctx, &core.DocumentRecord{ID: "doc-hollow", UploadedAt: now.AddDate(-1, 0, 0)}))

	result, err := f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsRemoved)
	assert.Equal(t, 0, result.VectorsRemoved)
	assert.Equal(t, 0, f.vectors.deletes)
	assert.Empty(t, f.recorder.Events())
}

func TestRemoveDocument_KeepsVectorsMergedAfterRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := f.seedDocument(t, "doc-a", 2, now)

	// An ingest lands in the same document after the sweep read its record
	merged := f.pipeline.Ingest(ctx, []string{"Late passage."}, core.DocumentMetadata{DocumentID: "doc-a"})
	require.True(t, merged.Success, merged.Error)

	removed, err := f.manager.removeDocument(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	record, err := f.documents.Get(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, merged.VectorIDs, record.VectorIDs)
	assert.Equal(t, 1, record.ChunkCount)
	assert.Equal(t, 1, f.count(t))

	result := f.manager.DeleteDocument(ctx, "doc-a")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, 0, f.count(t))
	_, err = f.documents.Get(ctx, "doc-a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
