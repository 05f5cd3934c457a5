// Package audioio provides microphone capture and speaker playback.
//
// Backends:
//   - PortAudio: real devices on Linux and macOS (disabled with the noaudio build tag)
//   - Mock: CI and tests without hardware
package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects PortAudio when compiled in, otherwise mock.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses an in-memory implementation.
	BackendMock Backend = "mock"
)

// ErrUnavailable is returned when a backend was not compiled into the binary.
var ErrUnavailable = errors.New("audioio: backend unavailable")

// ErrNotRunning is returned when writing to a sink that was not started.
var ErrNotRunning = errors.New("audioio: not running")

// Config holds audio configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the device sample rate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of one capture or playback buffer.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`
}

// DefaultConfig returns a capture config suited to speech recognition
// (16kHz mono, 100ms buffers).
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 100 * time.Millisecond,
	}
}

// DefaultPlaybackConfig returns a playback config matching 24kHz PCM
// speech synthesis output.
func DefaultPlaybackConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleRate = 24000
	cfg.BufferDuration = 20 * time.Millisecond
	return cfg
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 || c.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// FramesPerBuffer returns the number of frames per buffer.
func (c *Config) FramesPerBuffer() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// Chunk is a block of interleaved PCM16 samples.
type Chunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the chunk as little-endian PCM16.
func (c Chunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// ChunkFromBytes decodes little-endian PCM16.
func ChunkFromBytes(data []byte, sampleRate, channels int) Chunk {
	return Chunk{Samples: BytesToSamples(data), SampleRate: sampleRate, Channels: channels}
}

// Duration returns the playback duration of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate*c.Channels)
}

// Convert returns the chunk resampled and remixed to the given format.
func (c Chunk) Convert(sampleRate, channels int) Chunk {
	samples := c.Samples
	if c.Channels == 2 && channels == 1 {
		samples = StereoToMono(samples)
	}
	samples = Resample(samples, c.SampleRate, sampleRate)
	if c.Channels == 1 && channels == 2 {
		samples = MonoToStereo(samples)
	}
	return Chunk{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

// Source captures audio from a microphone.
type Source interface {
	// Start begins capture. Starting a running source is a no-op.
	Start(ctx context.Context) error

	// Stop halts capture. It is safe to call Stop multiple times.
	Stop() error

	// Read blocks for the next chunk. Returns io.EOF once stopped.
	Read(ctx context.Context) (Chunk, error)

	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}

// Sink plays audio to a speaker.
type Sink interface {
	Start(ctx context.Context) error
	Stop() error

	// Write plays a chunk, converting it to the sink format if needed.
	// It blocks until the samples are handed to the device.
	Write(ctx context.Context, chunk Chunk) error

	Config() Config
	Name() string
	io.Closer
}

// Stats contains counters for a source or sink.
type Stats struct {
	Chunks  int64  `json:"chunks"`
	Samples int64  `json:"samples"`
	Dropped int64  `json:"dropped"`
	Running bool   `json:"running"`
	Backend string `json:"backend"`
}

// Player plays whole utterances through a started Sink.
type Player struct {
	Sink Sink
}

// Play writes samples to the sink as a single chunk.
func (p Player) Play(ctx context.Context, samples []int16, sampleRate, channels int) error {
	return p.Sink.Write(ctx, Chunk{Samples: samples, SampleRate: sampleRate, Channels: channels})
}
