package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource generates synthetic audio, or replays scripted chunks and
// then reports io.EOF.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	chunks  chan Chunk
	stopCh  chan struct{}

	read    atomic.Int64
	samples atomic.Int64

	script    []Chunk
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave generates a sine tone instead of silence.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithScript replays the given chunks without pacing, then ends the stream.
func WithScript(chunks ...Chunk) MockSourceOption {
	return func(m *MockSource) {
		m.script = chunks
	}
}

// NewMockSource creates a mock source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		chunks:    make(chan Chunk, 16),
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.chunks = make(chan Chunk, 16)

	if m.script != nil {
		go m.replay(ctx, m.chunks, m.stopCh)
	} else {
		go m.generateLoop(ctx, m.chunks, m.stopCh)
	}

	m.logger.Debug("mock audio source started", "sample_rate", m.cfg.SampleRate)
	return nil
}

func (m *MockSource) replay(ctx context.Context, out chan Chunk, stop chan struct{}) {
	defer close(out)
	for _, chunk := range m.script {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case out <- chunk:
			m.read.Add(1)
			m.samples.Add(int64(len(chunk.Samples)))
		}
	}
}

func (m *MockSource) generateLoop(ctx context.Context, out chan Chunk, stop chan struct{}) {
	defer close(out)
	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			chunk := m.generateChunk()
			select {
			case out <- chunk:
				m.read.Add(1)
				m.samples.Add(int64(len(chunk.Samples)))
			default:
			}
		}
	}
}

func (m *MockSource) generateChunk() Chunk {
	frames := m.cfg.FramesPerBuffer()
	samples := make([]int16, frames*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < frames; i++ {
			v := int16(m.amplitude * 32767 * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = v
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return Chunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}
}

// Stop halts generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	return nil
}

// Read returns the next chunk.
func (m *MockSource) Read(ctx context.Context) (Chunk, error) {
	m.mu.Lock()
	ch := m.chunks
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return Chunk{}, io.EOF
		}
		return chunk, nil
	}
}

func (m *MockSource) Config() Config { return m.cfg }

func (m *MockSource) Name() string { return string(BackendMock) }

// Close stops the source permanently.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// Stats returns source counters.
func (m *MockSource) Stats() Stats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return Stats{
		Chunks:  m.read.Load(),
		Samples: m.samples.Load(),
		Running: running,
		Backend: string(BackendMock),
	}
}

var _ Source = (*MockSource)(nil)

// MockSink records written audio.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	written []Chunk
	err     error
}

// NewMockSink creates a mock sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// FailWith makes subsequent writes return err. Pass nil to clear.
func (m *MockSink) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

func (m *MockSink) Stop() error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

// Write records the chunk converted to the sink format.
func (m *MockSink) Write(ctx context.Context, chunk Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if !m.running {
		return ErrNotRunning
	}
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, chunk.Convert(m.cfg.SampleRate, m.cfg.Channels))
	return nil
}

// Written returns the recorded chunks.
func (m *MockSink) Written() []Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Chunk, len(m.written))
	copy(out, m.written)
	return out
}

func (m *MockSink) Config() Config { return m.cfg }

func (m *MockSink) Name() string { return string(BackendMock) }

func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.running = false
	m.mu.Unlock()
	return nil
}

// Stats returns sink counters.
func (m *MockSink) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var samples int64
	for _, c := range m.written {
		samples += int64(len(c.Samples))
	}
	return Stats{
		Chunks:  int64(len(m.written)),
		Samples: samples,
		Running: m.running,
		Backend: string(BackendMock),
	}
}

var _ Sink = (*MockSink)(nil)
