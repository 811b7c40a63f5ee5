package metrics

import (
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
)

// DefaultAsyncWorkers is the default worker count of an Async emitter.
const DefaultAsyncWorkers = 4

// Async delivers events to a wrapped emitter on a bounded worker pool.
// When every worker is busy the event is dropped rather than blocking the caller.
type Async struct {
	next   Emitter
	pool   *ants.Pool
	logger *slog.Logger
}

// NewAsync wraps next. A non-positive workers uses DefaultAsyncWorkers.
func NewAsync(next Emitter, workers int, logger *slog.Logger) (*Async, error) {
	if workers <= 0 {
		workers = DefaultAsyncWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Async{
		next:   next,
		pool:   pool,
		logger: logger.With("component", "metrics"),
	}, nil
}

// Emit schedules delivery of e.
func (a *Async) Emit(e Event) {
	err := a.pool.Submit(func() {
		a.next.Emit(e)
	})
	if err != nil {
		a.logger.Debug("dropped metric event", "reason", e.Reason, "error", err)
	}
}

// Close waits up to timeout for queued deliveries and releases the pool.
func (a *Async) Close(timeout time.Duration) error {
	return a.pool.ReleaseTimeout(timeout)
}
