package announce

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/teslashibe/go-seek/pkg/tts"
)

// ErrNoLocalEngine is returned when no local speech command is installed.
var ErrNoLocalEngine = errors.New("announce: no local speech engine found")

// SpeakerFunc adapts a function to a Speaker.
type SpeakerFunc struct {
	Label string
	Fn    func(ctx context.Context, text string) error
}

func (f SpeakerFunc) Name() string { return f.Label }

func (f SpeakerFunc) Speak(ctx context.Context, text string) error { return f.Fn(ctx, text) }

// Player plays interleaved PCM16 samples and returns once they are queued
// on the device.
type Player interface {
	Play(ctx context.Context, samples []int16, sampleRate, channels int) error
}

// SynthSpeaker synthesizes speech with a tts.Provider and plays it.
type SynthSpeaker struct {
	provider tts.Provider
	player   Player
}

// NewSynthSpeaker pairs a synthesis provider with a player.
func NewSynthSpeaker(provider tts.Provider, player Player) *SynthSpeaker {
	return &SynthSpeaker{provider: provider, player: player}
}

func (s *SynthSpeaker) Name() string { return "synth:" + s.provider.Name() }

// Speak synthesizes text and blocks until playback is handed off.
func (s *SynthSpeaker) Speak(ctx context.Context, text string) error {
	result, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if !result.Format.Encoding.IsPCM() {
		return fmt.Errorf("unsupported encoding %s", result.Format.Encoding)
	}
	return s.player.Play(ctx, result.Samples(), result.Format.SampleRate, result.Format.Channels)
}

// CommandSpeaker speaks through a local text-to-speech command such as
// espeak-ng or say. The text is passed as the final argument.
type CommandSpeaker struct {
	Path string
	Args []string
}

// NewLocalSpeaker finds a local engine for this platform.
func NewLocalSpeaker() (*CommandSpeaker, error) {
	candidates := []CommandSpeaker{
		{Path: "espeak-ng", Args: []string{"-s", "165"}},
		{Path: "espeak", Args: []string{"-s", "165"}},
	}
	if runtime.GOOS == "darwin" {
		candidates = append([]CommandSpeaker{{Path: "say"}}, candidates...)
	}

	for _, c := range candidates {
		if path, err := exec.LookPath(c.Path); err == nil {
			c.Path = path
			return &c, nil
		}
	}
	return nil, ErrNoLocalEngine
}

func (c *CommandSpeaker) Name() string { return "local" }

// Speak runs the command and waits for it to exit.
func (c *CommandSpeaker) Speak(ctx context.Context, text string) error {
	args := append(append([]string{}, c.Args...), text)
	out, err := exec.CommandContext(ctx, c.Path, args...).CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%s: %w: %s", c.Path, err, out)
		}
		return fmt.Errorf("%s: %w", c.Path, err)
	}
	return nil
}

var (
	_ Speaker = SpeakerFunc{}
	_ Speaker = (*SynthSpeaker)(nil)
	_ Speaker = (*CommandSpeaker)(nil)
)
