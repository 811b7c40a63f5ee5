package metrics

import "log/slog"

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Emitter receives quota metric events.
// Emit must not block for long and must never fail; callers do not inspect its outcome.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(e).
func (f EmitterFunc) Emit(e Event) {
	f(e)
}

// Nop discards every event.
var Nop Emitter = EmitterFunc(func(Event) {})

// LogEmitter writes each event as one structured log record.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates an emitter writing to logger.
// A nil logger uses slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit logs the event at info level with message quota_metric.
func (l *LogEmitter) Emit(e Event) {
	l.logger.Info(EventType,
		"type", EventType,
		"timestamp", e.Timestamp.UTC().Format(TimestampFormat),
		"count", e.Count,
		"delta", e.Delta,
		"reason", e.Reason,
		"percent_used", e.PercentUsed,
	)
}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

// Emit forwards e to every non-nil emitter.
func (m Multi) Emit(e Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(e)
		}
	}
}
