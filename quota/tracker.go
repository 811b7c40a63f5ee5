package quota

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/ragquota/metrics"
	"github.com/poiesic/ragquota/storage"
)

const (
	// CounterKey is the reserved key holding the vector count.
	CounterKey = "quota:vector_count"

	// DefaultLimit is the default capacity of the vector index.
	DefaultLimit = 100
)

// Tracker owns the persisted vector counter.
// Every operation runs on a single accounting goroutine, so reads, admission
// checks and mutations are serialized within the process.
type Tracker struct {
	kv      storage.KeyValueStore
	limit   int
	emitter metrics.Emitter
	logger  *slog.Logger
	now     func() time.Time

	// pending is only touched by the accounting goroutine.
	pending int

	requests  chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// Option configures a Tracker.
type Option func(*Tracker) error

// WithLimit sets the capacity limit.
// Default is DefaultLimit.
func WithLimit(limit int) Option {
	return func(t *Tracker) error {
		if limit <= 0 {
			return ErrInvalidLimit
		}
		t.limit = limit
		return nil
	}
}

// WithEmitter sets the metric emitter.
func WithEmitter(emitter metrics.Emitter) Option {
	return func(t *Tracker) error {
		if emitter != nil {
			t.emitter = emitter
		}
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) error {
		if logger != nil {
			t.logger = logger
		}
		return nil
	}
}

// WithClock sets the clock used to timestamp metric events.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) error {
		if now != nil {
			t.now = now
		}
		return nil
	}
}

// NewTracker creates a tracker over kv and starts its accounting goroutine.
// Call Close to stop it.
func NewTracker(kv storage.KeyValueStore, opts ...Option) (*Tracker, error) {
	if kv == nil {
		return nil, ErrKeyValueStoreRequired
	}

	t := &Tracker{
		kv:       kv,
		limit:    DefaultLimit,
		emitter:  metrics.Nop,
		logger:   slog.Default().With("component", "quota"),
		now:      time.Now,
		requests: make(chan func()),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	go t.run()
	return t, nil
}

func (t *Tracker) run() {
	defer close(t.stopped)
	for {
		select {
		case fn := <-t.requests:
			fn()
		case <-t.done:
			return
		}
	}
}

// Close stops the accounting goroutine. Subsequent calls return ErrTrackerClosed.
func (t *Tracker) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	<-t.stopped
	return nil
}

// Limit returns the capacity limit.
func (t *Tracker) Limit() int {
	return t.limit
}

type result[T any] struct {
	value T
	err   error
}

// call runs fn on the accounting goroutine and waits for its result.
func call[T any](ctx context.Context, t *Tracker, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	reply := make(chan result[T], 1)
	op := func() {
		v, err := fn()
		reply <- result[T]{value: v, err: err}
	}

	select {
	case t.requests <- op:
	case <-t.done:
		return zero, ErrTrackerClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	r := <-reply
	return r.value, r.err
}

// CurrentCount returns the persisted counter, 0 when absent.
func (t *Tracker) CurrentCount(ctx context.Context) (int, error) {
	return call(ctx, t, func() (int, error) {
		return t.load(ctx)
	})
}

// AdjustCount applies delta to the counter, clamping at zero, persists the
// result and emits a metric event carrying reason. Returns the new value.
func (t *Tracker) AdjustCount(ctx context.Context, delta int, reason string) (int, error) {
	return call(ctx, t, func() (int, error) {
		return t.adjust(ctx, delta, reason)
	})
}

// CheckAdmission reports whether requested vectors fit in the remaining quota.
// Capacity held by open reservations counts as used. Nothing is reserved.
func (t *Tracker) CheckAdmission(ctx context.Context, requested int) (Admission, error) {
	if requested < 0 {
		return Admission{}, ErrInvalidRequest
	}
	return call(ctx, t, func() (Admission, error) {
		return t.admission(ctx, requested)
	})
}

// UsageStatus returns the counter, limit, remaining quota and percentage used.
func (t *Tracker) UsageStatus(ctx context.Context) (Usage, error) {
	return call(ctx, t, func() (Usage, error) {
		current, err := t.load(ctx)
		if err != nil {
			return Usage{}, err
		}
		return Usage{
			CurrentCount:   current,
			MaxCount:       t.limit,
			AvailableQuota: max(0, t.limit-current),
			PercentageUsed: metrics.PercentUsed(current, t.limit),
		}, nil
	})
}

// Reserve atomically checks admission for n vectors and, when allowed, holds
// them as pending capacity until the reservation is committed or released.
// A denied request emits a quota_denied_requested_{n} event and returns a nil
// reservation together with the admission figures.
func (t *Tracker) Reserve(ctx context.Context, n int) (*Reservation, Admission, error) {
	if n < 0 {
		return nil, Admission{}, ErrInvalidRequest
	}
	admission, err := call(ctx, t, func() (Admission, error) {
		admission, err := t.admission(ctx, n)
		if err != nil {
			return admission, err
		}
		if !admission.Allowed {
			t.emit(admission.Current, 0, metrics.DeniedReason(n))
			return admission, nil
		}
		t.pending += n
		return admission, nil
	})
	if err != nil || !admission.Allowed {
		return nil, admission, err
	}
	return &Reservation{tracker: t, n: n}, admission, nil
}

func (t *Tracker) load(ctx context.Context) (int, error) {
	data, err := t.kv.Get(ctx, CounterKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	count, err := storage.UnmarshalCount(data)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (t *Tracker) adjust(ctx context.Context, delta int, reason string) (int, error) {
	current, err := t.load(ctx)
	if err != nil {
		return 0, err
	}

	next := current + delta
	if next < 0 {
		t.logger.Warn("counter clamped at zero", "current", current, "delta", delta, "reason", reason)
		next = 0
	}
	if err := t.kv.Put(ctx, CounterKey, storage.MarshalCount(int64(next))); err != nil {
		return 0, err
	}

	t.logger.Debug("adjusted vector count", "from", current, "to", next, "reason", reason)
	t.emit(next, delta, reason)
	return next, nil
}

func (t *Tracker) admission(ctx context.Context, requested int) (Admission, error) {
	current, err := t.load(ctx)
	if err != nil {
		return Admission{}, err
	}
	available := max(0, t.limit-current-t.pending)
	return Admission{
		Allowed:   requested <= available,
		Current:   current,
		Limit:     t.limit,
		Requested: requested,
		Available: available,
	}, nil
}

func (t *Tracker) emit(count, delta int, reason string) {
	t.emitter.Emit(metrics.NewEvent(t.now(), count, delta, t.limit, reason))
}
