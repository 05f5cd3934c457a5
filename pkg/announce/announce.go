// Package announce delivers spoken feedback off the frame loop.
//
// A Queue accepts throttled and mandatory announcements from any goroutine
// and a single worker speaks them strictly in enqueue order, trying each
// Speaker in turn until one succeeds. When every speaker fails the
// announcement is logged and dropped; the worker never stalls.
package announce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes throttled from mandatory announcements.
type Kind int

const (
	// Throttled announcements are suppressed when they repeat the last
	// throttled text within the window.
	Throttled Kind = iota
	// Mandatory announcements are always delivered.
	Mandatory
)

func (k Kind) String() string {
	switch k {
	case Throttled:
		return "throttled"
	case Mandatory:
		return "mandatory"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Announcement is one queued utterance.
type Announcement struct {
	ID       string
	Text     string
	Kind     Kind
	Enqueued time.Time
}

// Speaker is one delivery strategy.
type Speaker interface {
	Name() string
	// Speak blocks until the text has been played or the attempt failed.
	Speak(ctx context.Context, text string) error
}

// Announcer is the enqueue side of a Queue.
type Announcer interface {
	Throttled(text string) bool
	Mandatory(text string)
	ResetThrottle()
}

// Observer receives queue events. Implementations must be cheap and
// non-blocking; they are called with no locks held.
type Observer interface {
	Enqueued(kind Kind)
	Suppressed()
	Delivered(speaker string, elapsed time.Duration)
	Fallback(speaker string)
	Unavailable()
}

type nopObserver struct{}

func (nopObserver) Enqueued(Kind)                   {}
func (nopObserver) Suppressed()                     {}
func (nopObserver) Delivered(string, time.Duration) {}
func (nopObserver) Fallback(string)                 {}
func (nopObserver) Unavailable()                    {}

// ErrClosed is returned by Flush once the queue is closed.
var ErrClosed = errors.New("announce: queue closed")

// ErrNoSpeakers means the queue was built without any delivery strategy.
var ErrNoSpeakers = errors.New("announce: no speakers configured")

// DeliveryError records why every speaker failed for one announcement.
type DeliveryError struct {
	ID     string
	Text   string
	Errors []error
}

func (e *DeliveryError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("announce %s: %v", e.ID, ErrNoSpeakers)
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("announce %s: all speakers failed: %s", e.ID, strings.Join(msgs, "; "))
}

func (e *DeliveryError) Unwrap() []error {
	if len(e.Errors) == 0 {
		return []error{ErrNoSpeakers}
	}
	return e.Errors
}
