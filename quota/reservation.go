package quota

import (
	"context"
	"sync"
)

// Reservation holds admitted capacity until it is committed or released.
// Exactly one of Commit or Release takes effect.
type Reservation struct {
	tracker *Tracker
	n       int

	mu      sync.Mutex
	settled bool
}

// Size returns the number of vectors held.
func (r *Reservation) Size() int {
	return r.n
}

func (r *Reservation) settle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled {
		return false
	}
	r.settled = true
	return true
}

// Commit drops the hold and adds actual to the counter with reason.
// Returns the new counter value.
func (r *Reservation) Commit(ctx context.Context, actual int, reason string) (int, error) {
	if !r.settle() {
		return 0, ErrReservationSettled
	}
	// The hold is dropped even if ctx is already done.
	return call(context.WithoutCancel(ctx), r.tracker, func() (int, error) {
		r.tracker.pending -= r.n
		return r.tracker.adjust(ctx, actual, reason)
	})
}

// Release drops the hold without touching the counter.
// Releasing a settled reservation is a no-op.
func (r *Reservation) Release() {
	if !r.settle() {
		return
	}
	_, _ = call(context.Background(), r.tracker, func() (struct{}, error) {
		r.tracker.pending -= r.n
		return struct{}{}, nil
	})
}
