package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is the time between scheduled sweeps.
const DefaultSweepInterval = 24 * time.Hour

// Scheduler runs Manager.Sweep on a fixed interval.
type Scheduler struct {
	manager    *Manager
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger
	onSweep    func(*SweepResult, error)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the sweep interval. Non-positive values are ignored.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithRunOnStart makes the scheduler sweep once before the first tick.
func WithRunOnStart(enabled bool) SchedulerOption {
	return func(s *Scheduler) {
		s.runOnStart = enabled
	}
}

// WithSweepHook registers a callback receiving every sweep outcome.
func WithSweepHook(fn func(*SweepResult, error)) SchedulerOption {
	return func(s *Scheduler) {
		s.onSweep = fn
	}
}

// WithSchedulerLogger sets a custom logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler for manager.
func NewScheduler(manager *Manager, opts ...SchedulerOption) (*Scheduler, error) {
	if manager == nil {
		return nil, ErrManagerRequired
	}
	s := &Scheduler{
		manager:  manager,
		interval: DefaultSweepInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s, nil
}

// Run sweeps on every tick until ctx is cancelled. It returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("cleanup scheduler started", "interval", s.interval)
	if s.runOnStart {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			s.logger.Info("cleanup scheduler stopped")
			return ctx.Err()
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	result, err := s.manager.Sweep(ctx)
	if err != nil {
		s.logger.Error("cleanup sweep failed", "err", err)
	}
	if s.onSweep != nil {
		s.onSweep(result, err)
	}
}
