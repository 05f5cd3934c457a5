package guide

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-seek/pkg/announce"
	"github.com/teslashibe/go-seek/pkg/command"
	"github.com/teslashibe/go-seek/pkg/vision"
)

// barrierRecognizer only answers once every expected read has started, so
// it fails unless the reads run concurrently.
type barrierRecognizer struct {
	arrived sync.WaitGroup
}

func (r *barrierRecognizer) Read(ctx context.Context, f vision.Frame, b vision.Box) (string, error) {
	r.arrived.Done()
	all := make(chan struct{})
	go func() {
		r.arrived.Wait()
		close(all)
	}()
	select {
	case <-all:
		return b.Label, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *barrierRecognizer) ReadWithConfidence(ctx context.Context, f vision.Frame, b vision.Box) (string, float64, error) {
	text, err := r.Read(ctx, f, b)
	return text, 1, err
}

// finished reports whether a completed scan is waiting to be taken.
func finished(s *scanner) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil
}

func TestScanner_ReadsBoxesConcurrently(t *testing.T) {
	rec := &barrierRecognizer{}
	rec.arrived.Add(2)
	s := newScanner(rec, time.Second, 900*time.Millisecond, slog.Default())
	defer s.close()

	boxes := []vision.Box{box(0, 0, 50, 50, "cup", 0.9), box(100, 100, 150, 150, "jar", 0.8)}
	r, ok := s.scan(context.Background(), "s1", frame640, boxes)

	require.True(t, ok)
	assert.Equal(t, boxes, r.boxes)
	assert.Equal(t, []string{"cup", "jar"}, r.texts)
}

func TestScanner_DiscardsOtherSession(t *testing.T) {
	rec := &slowRecognizer{text: "milk", release: make(chan struct{})}
	s := newScanner(rec, time.Second, 0, slog.Default())
	defer s.close()

	boxes := []vision.Box{box(0, 0, 50, 50, "bottle", 0.9)}
	_, ok := s.scan(context.Background(), "s1", frame640, boxes)
	require.False(t, ok, "no budget means no wait")
	assert.True(t, s.pending("s1"))

	_, ok = s.scan(context.Background(), "s1", frame640, boxes)
	assert.False(t, ok, "one scan in flight at a time")

	close(rec.release)
	require.Eventually(t, func() bool { return finished(s) }, time.Second, 5*time.Millisecond)

	_, ok = s.scan(context.Background(), "s2", frame640, nil)
	assert.False(t, ok)
	assert.False(t, s.pending("s1"), "result from an earlier session dropped")
}

func TestScanner_ResetCancelsInFlight(t *testing.T) {
	rec := &slowRecognizer{release: make(chan struct{})}
	s := newScanner(rec, time.Minute, 0, slog.Default())

	s.scan(context.Background(), "s1", frame640, []vision.Box{box(0, 0, 50, 50, "bottle", 0.9)})
	s.reset()
	assert.False(t, s.pending("s1"))

	closed := make(chan struct{})
	go func() {
		s.close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close waited on a cancelled read")
	}
}

func TestFind_SlowRecognitionStaysWithinBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecognizeBudget = 20 * time.Millisecond
	rec := &slowRecognizer{text: "milk", release: make(chan struct{})}
	det := &fakeDetector{boxes: []vision.Box{
		box(100, 100, 200, 200, "bottle", 0.9),
		box(300, 100, 400, 200, "carton", 0.8),
	}}
	ctrl := NewController(cfg, Deps{Detector: det, Recognizer: rec, Announcer: &fakeAnnouncer{}})
	defer ctrl.Close()

	ctrl.Apply(command.Command{Action: command.Find, Argument: "milk"})
	for i := 0; i < 3; i++ {
		start := time.Now()
		v := ctrl.Process(context.Background(), frame640)
		assert.Less(t, time.Since(start), 300*time.Millisecond, "frame %d", i)
		assert.False(t, v.Locked)
		assert.Len(t, v.Candidates, 2)
	}

	close(rec.release)
	deadline := time.Now().Add(2 * time.Second)
	locked := false
	for !locked && time.Now().Before(deadline) {
		locked = ctrl.Process(context.Background(), frame640).Locked
	}
	require.True(t, locked, "late result picked up on a later frame")
	assert.Equal(t, box(100, 100, 200, 200, "bottle", 0.9), ctrl.Session().Track.Box)
}

func TestLoop_StopAppliedWhileRecognitionPending(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipFactor = 1
	cfg.RecognizeBudget = 20 * time.Millisecond

	ann := &fakeAnnouncer{}
	rec := &slowRecognizer{text: "milk", release: make(chan struct{})}
	det := &fakeDetector{boxes: []vision.Box{box(100, 100, 200, 200, "bottle", 0.9)}}
	ctrl := NewController(cfg, Deps{Detector: det, Recognizer: rec, Announcer: ann})
	defer ctrl.Close()

	cmds := command.NewChannel(4)
	require.NoError(t, cmds.TryPush(command.Command{Action: command.Find, Argument: "milk"}))
	require.NoError(t, cmds.TryPush(command.Command{Action: command.Stop}))

	rend := &recordingRenderer{quitAt: 2}
	start := time.Now()
	require.NoError(t, NewLoop(cfg, &scriptedSource{}, cmds, ctrl, rend, nil).Run(context.Background()))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Find, rend.views[0].Mode)
	assert.Equal(t, Idle, rend.views[1].Mode, "stop applied on the next frame")
	assert.Equal(t, []string{"Looking for milk.", "Stopped."}, ann.Texts(announce.Mandatory))
	assert.False(t, ctrl.scanner.pending(ctrl.Session().ID))
}

func TestRead_ResultArrivesOnLaterFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecognizeBudget = 0
	ann := &fakeAnnouncer{}
	rec := &slowRecognizer{text: "Best Before 2026", release: make(chan struct{})}
	det := &fakeDetector{boxes: []vision.Box{box(100, 100, 300, 300, "book", 0.8)}}
	ctrl := NewController(cfg, Deps{Detector: det, Recognizer: rec, Announcer: ann})
	defer ctrl.Close()

	ctrl.Apply(command.Command{Action: command.Read})
	ann.Clear()

	v := ctrl.Process(context.Background(), frame640)
	assert.Equal(t, Read, v.Mode)
	assert.Empty(t, ann.All())

	det.boxes = nil
	close(rec.release)
	require.Eventually(t, func() bool { return finished(ctrl.scanner) }, time.Second, 5*time.Millisecond)

	v = ctrl.Process(context.Background(), frame640)
	assert.Equal(t, Idle, v.Mode)
	assert.Equal(t, []string{"Best Before 2026"}, ann.Texts(announce.Mandatory), "text from the box that was read")
}
