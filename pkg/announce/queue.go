package announce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is a FIFO of announcements drained by one worker goroutine.
type Queue struct {
	speakers       []Speaker
	window         time.Duration
	gap            time.Duration
	attemptTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
	observer       Observer

	mu       sync.Mutex
	cond     *sync.Cond
	items    []Announcement
	busy     bool
	closed   bool
	lastText string
	lastAt   time.Time
	hasLast  bool

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a queue that tries speakers in order for every announcement.
// The worker does not run until Start.
func New(speakers []Speaker, opts ...Option) *Queue {
	q := &Queue{
		speakers:       speakers,
		window:         DefaultWindow,
		gap:            DefaultGap,
		attemptTimeout: DefaultAttemptTimeout,
		now:            time.Now,
		logger:         slog.Default(),
		observer:       nopObserver{},
		done:           make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "announce")
	return q
}

var _ Announcer = (*Queue)(nil)

// Throttled enqueues text unless it equals the last throttled text and the
// window has not elapsed since that enqueue. Reports whether it was queued.
func (q *Queue) Throttled(text string) bool {
	q.mu.Lock()
	now := q.now()
	if q.hasLast && text == q.lastText && now.Sub(q.lastAt) < q.window {
		q.mu.Unlock()
		q.observer.Suppressed()
		q.logger.Debug("announcement suppressed", "text", text)
		return false
	}
	ok := q.pushLocked(text, Throttled, now)
	if ok {
		q.lastText = text
		q.lastAt = now
		q.hasLast = true
	}
	q.mu.Unlock()

	if ok {
		q.observer.Enqueued(Throttled)
	}
	return ok
}

// Mandatory enqueues text unconditionally. It does not touch throttle memory.
func (q *Queue) Mandatory(text string) {
	q.mu.Lock()
	ok := q.pushLocked(text, Mandatory, q.now())
	q.mu.Unlock()

	if ok {
		q.observer.Enqueued(Mandatory)
	}
}

// ResetThrottle forgets the last throttled text.
func (q *Queue) ResetThrottle() {
	q.mu.Lock()
	q.hasLast = false
	q.lastText = ""
	q.mu.Unlock()
}

func (q *Queue) pushLocked(text string, kind Kind, at time.Time) bool {
	if q.closed {
		q.logger.Debug("queue closed, dropping announcement", "text", text)
		return false
	}
	q.items = append(q.items, Announcement{
		ID:       uuid.NewString(),
		Text:     text,
		Kind:     kind,
		Enqueued: at,
	})
	q.cond.Signal()
	return true
}

// Pending returns the number of queued, undelivered announcements
// including the one being spoken.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if q.busy {
		n++
	}
	return n
}

// Start launches the worker. Cancelling ctx closes the queue.
// Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		ctx, q.cancel = context.WithCancel(ctx)
		context.AfterFunc(ctx, q.shutdown)
		go q.run(ctx)
		q.logger.Info("announcement worker started", "speakers", len(q.speakers))
	})
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		a := q.items[0]
		q.items = q.items[1:]
		q.busy = true
		q.mu.Unlock()

		if q.deliver(ctx, a) && q.gap > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(q.gap):
			}
		}

		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// deliver tries each speaker in order. It reports whether any succeeded.
func (q *Queue) deliver(ctx context.Context, a Announcement) bool {
	derr := &DeliveryError{ID: a.ID, Text: a.Text}

	for _, s := range q.speakers {
		start := time.Now()
		err := q.attempt(ctx, s, a.Text)
		if err == nil {
			elapsed := time.Since(start)
			q.observer.Delivered(s.Name(), elapsed)
			q.logger.Debug("announcement delivered",
				"id", a.ID,
				"kind", a.Kind,
				"speaker", s.Name(),
				"elapsed_ms", elapsed.Milliseconds(),
			)
			return true
		}
		derr.Errors = append(derr.Errors, fmt.Errorf("%s: %w", s.Name(), err))
		q.observer.Fallback(s.Name())
		q.logger.Warn("speaker failed, trying next", "speaker", s.Name(), "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	q.observer.Unavailable()
	q.logger.Warn("speech unavailable", "text", a.Text, "kind", a.Kind, "error", derr)
	return false
}

func (q *Queue) attempt(ctx context.Context, s Speaker, text string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, q.attemptTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("speaker panic: %v", r)
		}
	}()
	return s.Speak(ctx, text)
}

// Flush blocks until every queued announcement has been handled or ctx ends.
func (q *Queue) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		q.mu.Lock()
		idle := len(q.items) == 0 && !q.busy
		closed := q.closed
		q.mu.Unlock()

		if idle {
			return nil
		}
		if closed {
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	if n := len(q.items); n > 0 {
		q.logger.Info("discarding pending announcements", "count", n)
	}
	q.items = nil
	q.cond.Broadcast()
}

// Close stops accepting announcements, discards pending ones, cancels the
// in-flight attempt and waits for the worker to exit.
func (q *Queue) Close() error {
	q.shutdown()
	q.startOnce.Do(func() {})
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
	return nil
}
