// Package tts synthesizes announcement audio with cloud speech providers.
//
// Providers return complete PCM buffers; playback is the caller's concern.
// A Chain tries providers in order so a failing primary falls through to
// the next one:
//
//	eleven, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVEN_API_KEY")),
//	    tts.WithVoice(os.Getenv("ELEVEN_VOICE_ID")),
//	)
//	chain, _ := tts.NewChain(eleven)
//	result, _ := chain.Synthesize(ctx, "Looking for milk.")
package tts

import (
	"context"
	"encoding/binary"
	"time"
)

// Provider converts text to audio.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	Duration  time.Duration
	CharCount int
	LatencyMs int64
	Provider  string
}

// Samples decodes little-endian PCM16 audio. It returns nil for
// compressed encodings.
func (r *AudioResult) Samples() []int16 {
	if !r.Format.Encoding.IsPCM() {
		return nil
	}
	out := make([]int16, len(r.Audio)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(r.Audio[i*2:]))
	}
	return out
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding names an output format, using ElevenLabs' identifiers.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingPCM44 Encoding = "pcm_44100"
	EncodingMP3   Encoding = "mp3_44100_128"
)

// IsPCM reports whether the encoding is raw PCM16.
func (e Encoding) IsPCM() bool {
	switch e {
	case EncodingPCM16, EncodingPCM22, EncodingPCM24, EncodingPCM44:
		return true
	}
	return false
}

// SampleRateFromEncoding extracts the sample rate from an encoding.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM44, EncodingMP3:
		return 44100
	default:
		return 24000
	}
}

// pcmFormat returns the mono PCM16 format for enc.
func pcmFormat(enc Encoding) AudioFormat {
	return AudioFormat{
		Encoding:   enc,
		SampleRate: SampleRateFromEncoding(enc),
		Channels:   1,
		BitDepth:   16,
	}
}

// pcmDuration estimates playback time of mono PCM16 audio.
func pcmDuration(n int, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n/2) / float64(sampleRate) * float64(time.Second))
}

// VoiceSettings controls voice characteristics for providers that support it.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Style           float64
	SpeakerBoost    bool
}

// DefaultVoiceSettings returns clear, steady settings suited to short prompts.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.6,
		SimilarityBoost: 0.75,
		SpeakerBoost:    true,
	}
}
