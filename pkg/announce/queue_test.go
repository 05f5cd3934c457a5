package announce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-seek/pkg/tts"
)

type recorder struct {
	mu        sync.Mutex
	spoken    []string
	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Speak(ctx context.Context, text string) error {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxActive.Load()
		if n <= m || r.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	r.spoken = append(r.spoken, text)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spoken...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func startQueue(t *testing.T, speakers []Speaker, opts ...Option) *Queue {
	t.Helper()
	opts = append([]Option{WithGap(0)}, opts...)
	q := New(speakers, opts...)
	q.Start(context.Background())
	t.Cleanup(func() { q.Close() })
	return q
}

func flush(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))
}

func TestQueue_ThrottleWindow(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	q := startQueue(t, []Speaker{rec}, WithClock(clock.Now))

	assert.True(t, q.Throttled("left"))
	assert.False(t, q.Throttled("left"))
	flush(t, q)
	assert.Equal(t, []string{"left"}, rec.Spoken())

	clock.Advance(999 * time.Millisecond)
	assert.False(t, q.Throttled("left"))

	clock.Advance(time.Millisecond)
	assert.True(t, q.Throttled("left"))
	flush(t, q)
	assert.Equal(t, []string{"left", "left"}, rec.Spoken())
}

func TestQueue_SuppressionMeasuredFromEnqueue(t *testing.T) {
	clock := newFakeClock()
	q := startQueue(t, []Speaker{&recorder{}}, WithClock(clock.Now))

	require.True(t, q.Throttled("left"))
	clock.Advance(600 * time.Millisecond)
	require.False(t, q.Throttled("left"))
	clock.Advance(600 * time.Millisecond)
	assert.True(t, q.Throttled("left"), "suppressed calls must not extend the window")
}

func TestQueue_DifferentTextNotSuppressed(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	q := startQueue(t, []Speaker{rec}, WithClock(clock.Now))

	assert.True(t, q.Throttled("left"))
	assert.True(t, q.Throttled("right"))
	assert.True(t, q.Throttled("left"))
	flush(t, q)
	assert.Equal(t, []string{"left", "right", "left"}, rec.Spoken())
}

func TestQueue_ResetThrottle(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	q := startQueue(t, []Speaker{rec}, WithClock(clock.Now))

	require.True(t, q.Throttled("milk: left, move forward"))
	require.False(t, q.Throttled("milk: left, move forward"))

	q.ResetThrottle()
	assert.True(t, q.Throttled("milk: left, move forward"))
	flush(t, q)
	assert.Len(t, rec.Spoken(), 2)
}

func TestQueue_MandatoryIgnoresThrottle(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	q := startQueue(t, []Speaker{rec}, WithClock(clock.Now))

	require.True(t, q.Throttled("left"))
	q.Mandatory("left")
	q.Mandatory("left")
	assert.False(t, q.Throttled("left"), "mandatory must not clear throttle memory")

	flush(t, q)
	assert.Equal(t, []string{"left", "left", "left"}, rec.Spoken())
}

func TestQueue_SerialFIFO(t *testing.T) {
	rec := &recorder{delay: 5 * time.Millisecond}
	q := startQueue(t, []Speaker{rec})

	want := []string{"Looking for milk.", "Found milk!", "milk: left, move forward", "Stopped."}
	q.Mandatory(want[0])
	q.Throttled(want[1])
	q.Throttled(want[2])
	q.Mandatory(want[3])

	flush(t, q)
	assert.Equal(t, want, rec.Spoken())
	assert.Equal(t, int32(1), rec.maxActive.Load())
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_Fallback(t *testing.T) {
	failing := SpeakerFunc{Label: "primary", Fn: func(ctx context.Context, text string) error {
		return errors.New("synthesis down")
	}}
	rec := &recorder{}
	q := startQueue(t, []Speaker{failing, rec})

	q.Mandatory("Reading.")
	flush(t, q)
	assert.Equal(t, []string{"Reading."}, rec.Spoken())
}

func TestQueue_AllSpeakersFail(t *testing.T) {
	var calls atomic.Int32
	failing := SpeakerFunc{Label: "broken", Fn: func(ctx context.Context, text string) error {
		calls.Add(1)
		return errors.New("no audio")
	}}
	obs := &countingObserver{}
	q := startQueue(t, []Speaker{failing, failing}, WithObserver(obs))

	q.Mandatory("one")
	q.Mandatory("two")
	flush(t, q)

	assert.Equal(t, int32(4), calls.Load(), "worker must keep draining after total failure")
	assert.Equal(t, int32(2), obs.unavailable.Load())
	assert.Equal(t, int32(4), obs.fallbacks.Load())
}

func TestQueue_NoSpeakers(t *testing.T) {
	q := startQueue(t, nil)
	q.Mandatory("Stopped.")
	flush(t, q)
}

func TestQueue_PanicRecovered(t *testing.T) {
	panicky := SpeakerFunc{Label: "panicky", Fn: func(ctx context.Context, text string) error {
		panic("boom")
	}}
	rec := &recorder{}
	q := startQueue(t, []Speaker{panicky, rec})

	q.Mandatory("hello")
	flush(t, q)
	assert.Equal(t, []string{"hello"}, rec.Spoken())
}

func TestQueue_AttemptTimeout(t *testing.T) {
	hung := SpeakerFunc{Label: "hung", Fn: func(ctx context.Context, text string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	rec := &recorder{}
	q := startQueue(t, []Speaker{hung, rec}, WithAttemptTimeout(20*time.Millisecond))

	q.Mandatory("hello")
	flush(t, q)
	assert.Equal(t, []string{"hello"}, rec.Spoken())
}

func TestQueue_Close(t *testing.T) {
	q := New([]Speaker{&recorder{}})
	q.Start(context.Background())
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.False(t, q.Throttled("late"))
	q.Mandatory("late")
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_ClosedDropDoesNotArmThrottle(t *testing.T) {
	obs := &countingObserver{}
	q := New([]Speaker{&recorder{}}, WithObserver(obs))
	require.NoError(t, q.Close())

	assert.False(t, q.Throttled("late"))
	assert.False(t, q.Throttled("late"))
	assert.Zero(t, obs.suppressed.Load(), "dropped text is not remembered")
	assert.Zero(t, obs.enqueued.Load())
}

func TestQueue_ContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := New([]Speaker{&recorder{}})
	q.Start(ctx)
	cancel()

	require.Eventually(t, func() bool {
		q.ResetThrottle()
		return !q.Throttled("after cancel")
	}, time.Second, 5*time.Millisecond)
	q.Close()
}

func TestDeliveryError(t *testing.T) {
	inner := errors.New("timeout")
	err := &DeliveryError{ID: "a1", Text: "hi", Errors: []error{inner}}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "all speakers failed")

	empty := &DeliveryError{ID: "a2"}
	assert.ErrorIs(t, empty, ErrNoSpeakers)
}

type countingObserver struct {
	enqueued    atomic.Int32
	suppressed  atomic.Int32
	delivered   atomic.Int32
	fallbacks   atomic.Int32
	unavailable atomic.Int32
}

func (o *countingObserver) Enqueued(Kind)                   { o.enqueued.Add(1) }
func (o *countingObserver) Suppressed()                     { o.suppressed.Add(1) }
func (o *countingObserver) Delivered(string, time.Duration) { o.delivered.Add(1) }
func (o *countingObserver) Fallback(string)                 { o.fallbacks.Add(1) }
func (o *countingObserver) Unavailable()                    { o.unavailable.Add(1) }

type fakePlayer struct {
	samples    []int16
	sampleRate int
}

func (p *fakePlayer) Play(ctx context.Context, samples []int16, sampleRate, channels int) error {
	p.samples = samples
	p.sampleRate = sampleRate
	return nil
}

func TestSynthSpeaker(t *testing.T) {
	mock := tts.NewMock()
	player := &fakePlayer{}
	s := NewSynthSpeaker(mock, player)

	assert.Equal(t, "synth:mock", s.Name())
	require.NoError(t, s.Speak(context.Background(), "Seek is ready."))
	assert.Equal(t, 24000, player.sampleRate)
	assert.NotEmpty(t, player.samples)
	assert.Equal(t, 1, mock.CallCount("Synthesize"))

	failing := NewSynthSpeaker(tts.WithError(tts.ErrProviderUnavailable), player)
	assert.ErrorIs(t, failing.Speak(context.Background(), "x"), tts.ErrProviderUnavailable)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "throttled", Throttled.String())
	assert.Equal(t, "mandatory", Mandatory.String())
}
