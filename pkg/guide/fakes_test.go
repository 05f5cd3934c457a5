package guide

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-seek/pkg/announce"
	"github.com/teslashibe/go-seek/pkg/vision"
)

type spoken struct {
	Kind announce.Kind
	Text string
}

// fakeAnnouncer records announcements without a worker. Throttling is not
// simulated; the queue has its own tests.
type fakeAnnouncer struct {
	mu     sync.Mutex
	items  []spoken
	resets int
}

func (a *fakeAnnouncer) Throttled(text string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, spoken{announce.Throttled, text})
	return true
}

func (a *fakeAnnouncer) Mandatory(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, spoken{announce.Mandatory, text})
}

func (a *fakeAnnouncer) ResetThrottle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resets++
}

func (a *fakeAnnouncer) All() []spoken {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]spoken(nil), a.items...)
}

func (a *fakeAnnouncer) Texts(kind announce.Kind) []string {
	var out []string
	for _, s := range a.All() {
		if s.Kind == kind {
			out = append(out, s.Text)
		}
	}
	return out
}

func (a *fakeAnnouncer) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = nil
}

// fakeDetector returns boxes, or err when set.
type fakeDetector struct {
	boxes []vision.Box
	err   error
	calls int
}

func (d *fakeDetector) Detect(vision.Frame) ([]vision.Box, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return append([]vision.Box(nil), d.boxes...), nil
}

// fakeRecognizer maps a box to text through fn. Reads may run
// concurrently; fn must only read shared state.
type fakeRecognizer struct {
	fn    func(b vision.Box) string
	calls atomic.Int64
}

func (r *fakeRecognizer) Read(ctx context.Context, f vision.Frame, b vision.Box) (string, error) {
	r.calls.Add(1)
	if r.fn == nil {
		return "", nil
	}
	return r.fn(b), nil
}

func (r *fakeRecognizer) ReadWithConfidence(ctx context.Context, f vision.Frame, b vision.Box) (string, float64, error) {
	text, err := r.Read(ctx, f, b)
	if text == "" {
		return "", 0, err
	}
	return text, 1, err
}

type failingRecognizer struct{}

func (failingRecognizer) Read(context.Context, vision.Frame, vision.Box) (string, error) {
	return "", errors.New("ocr offline")
}

func (failingRecognizer) ReadWithConfidence(context.Context, vision.Frame, vision.Box) (string, float64, error) {
	return "", 0, errors.New("ocr offline")
}

type fakeDepth struct {
	depth float64
	ok    bool
}

func (d fakeDepth) SampleBoxDepth(vision.Frame, vision.Box) (float64, bool) {
	return d.depth, d.ok
}

// slowRecognizer blocks every read until release is closed or ctx ends.
type slowRecognizer struct {
	text    string
	release chan struct{}
}

func (r *slowRecognizer) Read(ctx context.Context, f vision.Frame, b vision.Box) (string, error) {
	select {
	case <-r.release:
		return r.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *slowRecognizer) ReadWithConfidence(ctx context.Context, f vision.Frame, b vision.Box) (string, float64, error) {
	text, err := r.Read(ctx, f, b)
	return text, 1, err
}

var frame640 = vision.Dims{W: 640, H: 480}

// testConfig waits long enough for in-memory recognizers to finish within
// the frame that started them.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RecognizeBudget = 500 * time.Millisecond
	return cfg
}

func box(x1, y1, x2, y2 int, label string, conf float64) vision.Box {
	return vision.Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Label: label, Confidence: conf}
}
