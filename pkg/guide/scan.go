package guide

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-seek/pkg/vision"
)

// scanResult is the text read inside boxes for one session.
type scanResult struct {
	session string
	boxes   []vision.Box
	texts   []string
}

// scanner reads text off the loop goroutine. At most one scan is in flight;
// the loop waits for it at most budget per tick and picks up late results
// on a later tick. Results from an earlier session are discarded.
type scanner struct {
	recognizer vision.TextRecognizer
	timeout    time.Duration
	budget     time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	session string
	done    chan struct{} // nil when idle
	cancel  context.CancelFunc
	result  *scanResult

	wg sync.WaitGroup
}

func newScanner(rec vision.TextRecognizer, timeout, budget time.Duration, logger *slog.Logger) *scanner {
	return &scanner{recognizer: rec, timeout: timeout, budget: budget, logger: logger}
}

// scan starts reading boxes unless a scan is already in flight, waits up to
// the budget, and returns a completed result for session if there is one.
func (s *scanner) scan(ctx context.Context, session string, frame vision.Frame, boxes []vision.Box) (scanResult, bool) {
	s.mu.Lock()
	if s.result != nil && s.result.session != session {
		s.result = nil
	}
	if s.done == nil && s.result == nil && len(boxes) > 0 {
		s.start(ctx, session, frame, boxes)
	}
	done := s.done
	s.mu.Unlock()

	if done != nil && s.budget > 0 {
		t := time.NewTimer(s.budget)
		select {
		case <-done:
		case <-t.C:
		case <-ctx.Done():
		}
		t.Stop()
	}
	return s.take(session)
}

// start launches a scan. s.mu must be held.
func (s *scanner) start(ctx context.Context, session string, frame vision.Frame, boxes []vision.Box) {
	f := vision.Retain(frame)
	boxes = append([]vision.Box(nil), boxes...)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	done := make(chan struct{})
	s.session, s.done, s.cancel = session, done, cancel

	s.wg.Go(func() {
		defer close(done)
		defer cancel()

		start := time.Now()
		texts := s.readAll(ctx, f, boxes)
		vision.Release(f)
		s.logger.Debug("scan finished", "boxes", len(boxes), "elapsed_ms", time.Since(start).Milliseconds())

		s.mu.Lock()
		if s.done == done {
			s.result = &scanResult{session: session, boxes: boxes, texts: texts}
			s.done, s.cancel = nil, nil
		}
		s.mu.Unlock()
	})
}

// readAll reads every box concurrently. Failed reads yield "".
func (s *scanner) readAll(ctx context.Context, frame vision.Frame, boxes []vision.Box) []string {
	texts := make([]string, len(boxes))
	var wg sync.WaitGroup
	for i, b := range boxes {
		wg.Go(func() {
			text, err := s.recognizer.Read(ctx, frame, b)
			if err != nil {
				s.logger.Debug("text recognition failed", "box", b, "error", err)
				return
			}
			texts[i] = strings.TrimSpace(text)
		})
	}
	wg.Wait()
	return texts
}

func (s *scanner) take(session string) (scanResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.result
	if r == nil || r.session != session {
		return scanResult{}, false
	}
	s.result = nil
	return *r, true
}

// pending reports whether a scan for session is in flight or unread.
func (s *scanner) pending(session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.done != nil && s.session == session) ||
		(s.result != nil && s.result.session == session)
}

// reset abandons the in-flight scan and any unread result.
func (s *scanner) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.done, s.cancel, s.result = nil, nil, nil
}

// close abandons any scan and waits for its goroutines.
func (s *scanner) close() {
	s.reset()
	s.wg.Wait()
}
