package announce

import (
	"log/slog"
	"time"
)

const (
	// DefaultWindow is how long an identical throttled text stays suppressed.
	DefaultWindow = time.Second
	// DefaultGap is the pause after each delivered utterance.
	DefaultGap = 300 * time.Millisecond
	// DefaultAttemptTimeout bounds a single speaker attempt.
	DefaultAttemptTimeout = 15 * time.Second
)

// Option configures a Queue.
type Option func(*Queue)

// WithWindow sets the throttle window.
func WithWindow(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.window = d
		}
	}
}

// WithGap sets the pause between utterances.
func WithGap(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.gap = d
		}
	}
}

// WithAttemptTimeout bounds each speaker attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.attemptTimeout = d
		}
	}
}

// WithClock replaces time.Now for throttle decisions.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(q *Queue) {
		if o != nil {
			q.observer = o
		}
	}
}
