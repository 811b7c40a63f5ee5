package metrics

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// EventType is the type attribute carried by every quota metric event.
const EventType = "quota_metric"

// Reason prefixes.
const (
	upsertPrefix = "upsert_document_"
	deletePrefix = "delete_document_"
	deniedPrefix = "quota_denied_requested_"
	driftPrefix  = "reconcile_drift_"
)

// Event kinds used as the Prometheus kind label.
const (
	KindUpsert    = "upsert"
	KindDelete    = "delete"
	KindDenied    = "denied"
	KindReconcile = "reconcile"
	KindOther     = "other"
)

// Event records one quota state transition.
type Event struct {
	Type        string
	Timestamp   time.Time
	Count       int
	Delta       int
	Reason      string
	PercentUsed float64
}

// NewEvent builds an event for a counter value against limit.
func NewEvent(now time.Time, count, delta, limit int, reason string) Event {
	return Event{
		Type:        EventType,
		Timestamp:   now.UTC(),
		Count:       count,
		Delta:       delta,
		Reason:      reason,
		PercentUsed: PercentUsed(count, limit),
	}
}

// PercentUsed returns count as a percentage of limit rounded to two decimals.
// A non-positive limit yields 0.
func PercentUsed(count, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(limit)*100*100) / 100
}

// Kind classifies an event by its reason.
func (e Event) Kind() string {
	switch {
	case strings.HasPrefix(e.Reason, upsertPrefix):
		return KindUpsert
	case strings.HasPrefix(e.Reason, deletePrefix):
		return KindDelete
	case strings.HasPrefix(e.Reason, deniedPrefix):
		return KindDenied
	case strings.HasPrefix(e.Reason, driftPrefix):
		return KindReconcile
	default:
		return KindOther
	}
}

// UpsertReason is the reason recorded when a document's vectors are counted.
func UpsertReason(documentID string) string {
	return upsertPrefix + documentID
}

// DeleteReason is the reason recorded when a document's vectors are released.
func DeleteReason(documentID string) string {
	return deletePrefix + documentID
}

// DeniedReason is the reason recorded when an admission request is refused.
func DeniedReason(requested int) string {
	return fmt.Sprintf("%s%d", deniedPrefix, requested)
}

// DriftReason is the reason recorded when reconciliation corrects the counter.
func DriftReason(delta int) string {
	return fmt.Sprintf("%s%d", driftPrefix, delta)
}
