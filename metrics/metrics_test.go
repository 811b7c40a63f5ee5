package metrics

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentUsed(t *testing.T) {
	assert.Equal(t, 75.0, PercentUsed(75, 100))
	assert.Equal(t, 33.33, PercentUsed(1, 3))
	assert.Equal(t, 66.67, PercentUsed(2, 3))
	assert.Equal(t, 0.0, PercentUsed(5, 0))
}

func TestEventKind(t *testing.T) {
	tests := []struct {
		reason string
		kind   string
	}{
		{UpsertReason("doc-1"), KindUpsert},
		{DeleteReason("doc-1"), KindDelete},
		{DeniedReason(20), KindDenied},
		{DriftReason(-3), KindReconcile},
		{"manual", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.kind, Event{Reason: tt.reason}.Kind())
		})
	}
}

func TestReasons(t *testing.T) {
	assert.Equal(t, "upsert_document_doc-7", UpsertReason("doc-7"))
	assert.Equal(t, "delete_document_doc-7", DeleteReason("doc-7"))
	assert.Equal(t, "quota_denied_requested_20", DeniedReason(20))
	assert.Equal(t, "reconcile_drift_-4", DriftReason(-4))
}

func TestLogEmitter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	now := time.Date(2025, 4, 5, 6, 7, 8, 9_000_000, time.UTC)
	NewLogEmitter(logger).Emit(NewEvent(now, 90, 5, 100, UpsertReason("doc-1")))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "quota_metric", record["msg"])
	assert.Equal(t, "quota_metric", record["type"])
	assert.Equal(t, "2025-04-05T06:07:08.009Z", record["timestamp"])
	assert.Equal(t, float64(90), record["count"])
	assert.Equal(t, float64(5), record["delta"])
	assert.Equal(t, "upsert_document_doc-1", record["reason"])
	assert.Equal(t, float64(90), record["percent_used"])
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	m := Multi{&a, nil, &b}
	m.Emit(Event{Reason: "x"})

	assert.Equal(t, []string{"x"}, a.Reasons())
	assert.Equal(t, []string{"x"}, b.Reasons())
}

func TestPrometheusEmitter(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheusEmitter(reg)
	require.NoError(t, err)

	now := time.Now()
	p.Emit(NewEvent(now, 85, 85, 100, UpsertReason("doc-1")))
	p.Emit(NewEvent(now, 85, 0, 100, DeniedReason(20)))
	p.Emit(NewEvent(now, 80, -5, 100, DeleteReason("doc-1")))

	assert.Equal(t, 80.0, testutil.ToFloat64(p.vectors))
	assert.Equal(t, 80.0, testutil.ToFloat64(p.percentUsed))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.events.WithLabelValues(KindUpsert)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.events.WithLabelValues(KindDenied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.events.WithLabelValues(KindDelete)))

	// Registering twice fails
	_, err = NewPrometheusEmitter(reg)
	assert.Error(t, err)
}

func TestAsync(t *testing.T) {
	var wg sync.WaitGroup
	var rec Recorder
	wg.Add(3)
	next := EmitterFunc(func(e Event) {
		rec.Emit(e)
		wg.Done()
	})

	async, err := NewAsync(next, 8, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		async.Emit(Event{Reason: "r"})
	}
	wg.Wait()
	require.NoError(t, async.Close(time.Second))
	assert.Len(t, rec.Events(), 3)
}

func TestAsync_DropsWhenSaturated(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	var rec Recorder
	next := EmitterFunc(func(e Event) {
		started <- struct{}{}
		<-block
		rec.Emit(e)
	})

	async, err := NewAsync(next, 1, nil)
	require.NoError(t, err)

	async.Emit(Event{Reason: "first"})
	<-started
	// The single worker is busy, so this event is dropped without blocking.
	async.Emit(Event{Reason: "second"})

	close(block)
	require.NoError(t, async.Close(time.Second))
	assert.Equal(t, []string{"first"}, rec.Reasons())
}

func TestRecorder_Last(t *testing.T) {
	var rec Recorder
	_, ok := rec.Last()
	assert.False(t, ok)

	rec.Emit(Event{Reason: "a"})
	rec.Emit(Event{Reason: "b"})
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.Reason)
}
