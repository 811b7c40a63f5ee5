// Package quota tracks how many vectors are counted against the index capacity.
//
// The counter is a single integer persisted in a storage.KeyValueStore under
// CounterKey. A Tracker owns it through one accounting goroutine: every read,
// admission check and mutation is queued to that goroutine, which makes
// check-then-increment sequences atomic within a process when they go through
// Reserve.
//
//	res, admission, err := tracker.Reserve(ctx, len(chunks))
//	if err != nil {
//	    return err
//	}
//	if res == nil {
//	    return admission.Err() // wraps ErrQuotaExceeded
//	}
//	defer res.Release()
//	// ... store vectors ...
//	_, err = res.Commit(ctx, stored, metrics.UpsertReason(docID))
//
// Adjustments clamp at zero. Every mutation and every refused reservation
// emits a metrics.Event.
package quota
