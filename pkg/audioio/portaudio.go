//go:build !noaudio

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

const portAudioAvailable = true

var (
	paMu   sync.Mutex
	paRefs int
)

// acquire initializes PortAudio on first use.
func acquire() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init: %w", err)
		}
	}
	paRefs++
	return nil
}

func release() {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		return
	}
	paRefs--
	if paRefs == 0 {
		portaudio.Terminate()
	}
}

// PortAudioSource captures from the default input device.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	chunks  chan Chunk
	stopCh  chan struct{}
	done    chan struct{}
	running bool
	closed  bool

	read    atomic.Int64
	samples atomic.Int64
	dropped atomic.Int64
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := acquire(); err != nil {
		return nil, err
	}
	return &PortAudioSource{
		cfg:    cfg,
		logger: logger,
		buf:    make([]int16, cfg.FramesPerBuffer()*cfg.Channels),
		chunks: make(chan Chunk, 16),
	}, nil
}

// Start opens the input stream and begins capture.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(s.cfg.Channels, 0, float64(s.cfg.SampleRate), s.cfg.FramesPerBuffer(), s.buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	s.stream = stream
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.chunks = make(chan Chunk, 16)

	go s.captureLoop(ctx, stream, s.chunks, s.stopCh, s.done)

	s.logger.Info("portaudio source started", "sample_rate", s.cfg.SampleRate)
	return nil
}

func (s *PortAudioSource) captureLoop(ctx context.Context, stream *portaudio.Stream, out chan Chunk, stop, done chan struct{}) {
	defer close(done)
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Input overflow is reported as an error but the buffer is still valid.
			if err != portaudio.InputOverflowed {
				s.logger.Warn("portaudio read failed", "error", err)
				return
			}
			s.dropped.Add(1)
		}

		samples := make([]int16, len(s.buf))
		copy(samples, s.buf)
		chunk := Chunk{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}

		select {
		case out <- chunk:
			s.read.Add(1)
			s.samples.Add(int64(len(samples)))
		default:
			s.dropped.Add(1)
		}
	}
}

// Stop halts capture and closes the stream.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stream, stop, done := s.stream, s.stopCh, s.done
	s.stream = nil
	s.mu.Unlock()

	close(stop)
	<-done

	if err := stream.Stop(); err != nil {
		s.logger.Debug("portaudio stop", "error", err)
	}
	s.logger.Info("portaudio source stopped")
	return stream.Close()
}

// Read returns the next captured chunk.
func (s *PortAudioSource) Read(ctx context.Context) (Chunk, error) {
	s.mu.Lock()
	ch := s.chunks
	s.mu.Unlock()

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

func (s *PortAudioSource) Config() Config { return s.cfg }

func (s *PortAudioSource) Name() string { return string(BackendPortAudio) }

// Close stops capture and releases PortAudio.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Stop()
	release()
	return err
}

// Stats returns capture counters.
func (s *PortAudioSource) Stats() Stats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return Stats{
		Chunks:  s.read.Load(),
		Samples: s.samples.Load(),
		Dropped: s.dropped.Load(),
		Running: running,
		Backend: string(BackendPortAudio),
	}
}

var _ Source = (*PortAudioSource)(nil)

// PortAudioSink plays through the default output device.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	running bool
	closed  bool

	written atomic.Int64
	samples atomic.Int64
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := acquire(); err != nil {
		return nil, err
	}
	return &PortAudioSink{
		cfg:    cfg,
		logger: logger,
		buf:    make([]int16, cfg.FramesPerBuffer()*cfg.Channels),
	}, nil
}

// Start opens the output stream.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(0, s.cfg.Channels, float64(s.cfg.SampleRate), s.cfg.FramesPerBuffer(), s.buf)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start output stream: %w", err)
	}

	s.stream = stream
	s.running = true
	s.logger.Info("portaudio sink started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// Write converts the chunk to the device format and plays it buffer by buffer.
func (s *PortAudioSink) Write(ctx context.Context, chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if !s.running {
		return ErrNotRunning
	}

	samples := chunk.Convert(s.cfg.SampleRate, s.cfg.Channels).Samples
	for off := 0; off < len(samples); off += len(s.buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(s.buf, samples[off:])
		clear(s.buf[n:])
		if err := s.stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
			return fmt.Errorf("portaudio write: %w", err)
		}
	}

	s.written.Add(1)
	s.samples.Add(int64(len(samples)))
	return nil
}

// Stop closes the output stream.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	stream := s.stream
	s.stream = nil

	if err := stream.Stop(); err != nil {
		s.logger.Debug("portaudio stop", "error", err)
	}
	s.logger.Info("portaudio sink stopped")
	return stream.Close()
}

func (s *PortAudioSink) Config() Config { return s.cfg }

func (s *PortAudioSink) Name() string { return string(BackendPortAudio) }

// Close stops playback and releases PortAudio.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Stop()
	release()
	return err
}

// Stats returns playback counters.
func (s *PortAudioSink) Stats() Stats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return Stats{
		Chunks:  s.written.Load(),
		Samples: s.samples.Load(),
		Running: running,
		Backend: string(BackendPortAudio),
	}
}

var _ Sink = (*PortAudioSink)(nil)
