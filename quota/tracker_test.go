package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragquota/metrics"
	"github.com/poiesic/ragquota/storage"
	"github.com/poiesic/ragquota/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackerFixture struct {
	tracker  *Tracker
	kv       storage.KeyValueStore
	recorder *metrics.Recorder
}

func newTrackerFixture(t *testing.T, opts ...Option) *trackerFixture {
	t.Helper()
	kv, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	recorder := &metrics.Recorder{}
	opts = append([]Option{WithEmitter(recorder)}, opts...)
	tracker, err := NewTracker(kv, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	return &trackerFixture{tracker: tracker, kv: kv, recorder: recorder}
}

func (f *trackerFixture) seed(t *testing.T, count int) {
	t.Helper()
	require.NoError(t, f.kv.Put(context.Background(), CounterKey, storage.MarshalCount(int64(count))))
}

func TestNewTracker_Validation(t *testing.T) {
	_, err := NewTracker(nil)
	assert.ErrorIs(t, err, ErrKeyValueStoreRequired)

	kv, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewTracker(kv, WithLimit(0))
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestCurrentCount_DefaultsToZero(t *testing.T) {
	f := newTrackerFixture(t)

	count, err := f.tracker.CurrentCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAdjustCount(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	count, err := f.tracker.AdjustCount(ctx, 10, "upsert_document_doc-1")
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	count, err = f.tracker.AdjustCount(ctx, -4, "delete_document_doc-1")
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	// Persisted under the reserved key
	data, err := f.kv.Get(ctx, CounterKey)
	require.NoError(t, err)
	stored, err := storage.UnmarshalCount(data)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stored)

	last, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, metrics.EventType, last.Type)
	assert.Equal(t, 6, last.Count)
	assert.Equal(t, -4, last.Delta)
	assert.Equal(t, "delete_document_doc-1", last.Reason)
	assert.Equal(t, 6.0, last.PercentUsed)
}

func TestAdjustCount_NeverNegative(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	deltas := []int{3, -5, -1, 7, -100, 2, -2, -2}
	for _, delta := range deltas {
		count, err := f.tracker.AdjustCount(ctx, delta, "test")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 0)
	}

	count, err := f.tracker.CurrentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCheckAdmission_Boundary(t *testing.T) {
	f := newTrackerFixture(t)
	f.seed(t, 85)
	ctx := context.Background()

	for requested := 0; requested <= 30; requested++ {
		admission, err := f.tracker.CheckAdmission(ctx, requested)
		require.NoError(t, err)
		assert.Equal(t, requested <= 15, admission.Allowed, "requested %d", requested)
		assert.Equal(t, 85, admission.Current)
		assert.Equal(t, 100, admission.Limit)
		assert.Equal(t, 15, admission.Available)
		assert.Equal(t, requested, admission.Requested)
	}

	_, err := f.tracker.CheckAdmission(ctx, -1)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// CheckAdmission never emits
	assert.Empty(t, f.recorder.Events())
}

func TestUsageStatus(t *testing.T) {
	f := newTrackerFixture(t)
	f.seed(t, 75)

	usage, err := f.tracker.UsageStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Usage{
		CurrentCount:   75,
		MaxCount:       100,
		AvailableQuota: 25,
		PercentageUsed: 75.0,
	}, usage)
}

func TestUsageStatus_Rounding(t *testing.T) {
	f := newTrackerFixture(t, WithLimit(3))
	f.seed(t, 1)

	usage, err := f.tracker.UsageStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 33.33, usage.PercentageUsed)
}

func TestReserve_AdmitsAndCommits(t *testing.T) {
	f := newTrackerFixture(t)
	f.seed(t, 85)
	ctx := context.Background()

	res, admission, err := f.tracker.Reserve(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, admission.Allowed)
	assert.NoError(t, admission.Err())
	assert.Equal(t, 5, res.Size())

	// Held capacity counts as used
	check, err := f.tracker.CheckAdmission(ctx, 11)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, 10, check.Available)

	count, err := res.Commit(ctx, 5, metrics.UpsertReason("doc-1"))
	require.NoError(t, err)
	assert.Equal(t, 90, count)

	last, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last.Delta)
	assert.Equal(t, 90, last.Count)

	_, err = res.Commit(ctx, 5, "again")
	assert.ErrorIs(t, err, ErrReservationSettled)

	check, err = f.tracker.CheckAdmission(ctx, 10)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
}

func TestReserve_DeniedEmitsMetric(t *testing.T) {
	f := newTrackerFixture(t)
	f.seed(t, 85)
	ctx := context.Background()

	res, admission, err := f.tracker.Reserve(ctx, 20)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.False(t, admission.Allowed)
	assert.Equal(t, 15, admission.Available)

	err = admission.Err()
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "current=85 limit=100 requested=20 available=15")

	count, err := f.tracker.CurrentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 85, count)

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 0, events[0].Delta)
	assert.Equal(t, 85, events[0].Count)
	assert.Contains(t, events[0].Reason, "quota_denied_requested_20")
}

func TestReserve_Release(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	res, _, err := f.tracker.Reserve(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, res)

	other, _, err := f.tracker.Reserve(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, other)

	res.Release()
	res.Release()

	other, _, err = f.tracker.Reserve(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, other)

	count, err := f.tracker.CurrentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReserve_ConcurrentNeverOversubscribes(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := f.tracker.Reserve(ctx, 7)
			if err != nil || res == nil {
				return
			}
			if _, err := res.Commit(ctx, 7, "concurrent"); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	count, err := f.tracker.CurrentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, admitted*7, count)
	assert.LessOrEqual(t, count, 100)
	assert.Equal(t, 14, admitted)
}

func TestTracker_Closed(t *testing.T) {
	f := newTrackerFixture(t)
	require.NoError(t, f.tracker.Close())
	require.NoError(t, f.tracker.Close())

	_, err := f.tracker.CurrentCount(context.Background())
	assert.ErrorIs(t, err, ErrTrackerClosed)

	_, err = f.tracker.AdjustCount(context.Background(), 1, "x")
	assert.ErrorIs(t, err, ErrTrackerClosed)

	_, _, err = f.tracker.Reserve(context.Background(), 1)
	assert.ErrorIs(t, err, ErrTrackerClosed)
}

func TestTracker_CancelledContext(t *testing.T) {
	f := newTrackerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.tracker.CurrentCount(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTracker_Clock(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f := newTrackerFixture(t, WithClock(func() time.Time { return fixed }))

	_, err := f.tracker.AdjustCount(context.Background(), 1, "x")
	require.NoError(t, err)

	last, ok := f.recorder.Last()
	require.True(t, ok)
	assert.True(t, fixed.Equal(last.Timestamp))
}
