// Package config loads the seek configuration: built-in defaults, an
// optional YAML file, a .env file and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-seek/pkg/guidance"
	"github.com/teslashibe/go-seek/pkg/guide"
	"github.com/teslashibe/go-seek/pkg/match"
	"github.com/teslashibe/go-seek/pkg/tracking"
	"github.com/teslashibe/go-seek/pkg/vision/ocr"
)

// Config is the complete application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Depth    DepthConfig    `yaml:"depth"`
	OCR      ocr.Config     `yaml:"ocr"`
	Guide    GuideConfig    `yaml:"guide"`
	Announce AnnounceConfig `yaml:"announce"`
	TTS      TTSConfig      `yaml:"tts"`
	Voice    VoiceConfig    `yaml:"voice"`
	Audio    AudioConfig    `yaml:"audio"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`

	// Headless disables the overlay window.
	Headless bool `yaml:"headless"`
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device    string `yaml:"device"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Framerate int    `yaml:"framerate"`
	Quality   int    `yaml:"quality"`
	Mirror    bool   `yaml:"mirror"`
}

// DetectorConfig configures the YOLO detector.
type DetectorConfig struct {
	ModelPath  string  `yaml:"model_path"`
	Confidence float32 `yaml:"confidence"`
	NMS        float32 `yaml:"nms"`
	InputSize  int     `yaml:"input_size"`
}

// DepthConfig configures the optional depth estimator.
type DepthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ModelPath string `yaml:"model_path"`
	InputSize int    `yaml:"input_size"`
}

// GuideConfig groups the frame loop, matcher, tracker and guidance knobs.
type GuideConfig struct {
	guide.Config `yaml:",inline"`

	MatchThreshold float64         `yaml:"match_threshold"`
	Tracking       tracking.Config `yaml:"tracking"`
	Guidance       guidance.Config `yaml:"guidance"`
	CommandBuffer  int             `yaml:"command_buffer"`
}

// AnnounceConfig configures the announcement queue.
type AnnounceConfig struct {
	Window         time.Duration `yaml:"window"`
	Gap            time.Duration `yaml:"gap"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// LocalFallback adds the operating system speech engine after the
	// synthesized voices.
	LocalFallback bool `yaml:"local_fallback"`
}

// TTSConfig lists synthesis providers in fallback order.
type TTSConfig struct {
	Providers  []string         `yaml:"providers"`
	Timeout    time.Duration    `yaml:"timeout"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
}

// ElevenLabsConfig configures the ElevenLabs provider.
type ElevenLabsConfig struct {
	APIKey  string `yaml:"-"`
	VoiceID string `yaml:"voice_id"`
	Model   string `yaml:"model"`
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey string `yaml:"-"`
	Voice  string `yaml:"voice"`
	Model  string `yaml:"model"`
}

// VoiceConfig configures speech recognition. ServerURL takes precedence
// over ModelPath.
type VoiceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ModelPath  string `yaml:"model_path"`
	ServerURL  string `yaml:"server_url"`
	SampleRate int    `yaml:"sample_rate"`
}

// AudioConfig selects the audio backend and device formats.
type AudioConfig struct {
	Backend        string        `yaml:"backend"`
	InputRate      int           `yaml:"input_rate"`
	OutputRate     int           `yaml:"output_rate"`
	BufferDuration time.Duration `yaml:"buffer_duration"`
}

// WebConfig configures the status and command API.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Known synthesis providers.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderOpenAI     = "openai"
)

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{Device: "0", Width: 640, Height: 480, Framerate: 30, Quality: 85},
		Detector: DetectorConfig{
			ModelPath:  "models/yolov8n.onnx",
			Confidence: 0.25,
			NMS:        0.45,
			InputSize:  640,
		},
		Depth: DepthConfig{ModelPath: "models/midas_v21_small_256.onnx", InputSize: 256},
		OCR:   ocr.DefaultConfig(),
		Guide: GuideConfig{
			Config:         guide.DefaultConfig(),
			MatchThreshold: match.DefaultThreshold,
			Tracking:       tracking.DefaultConfig(),
			Guidance:       guidance.DefaultConfig(),
			CommandBuffer:  16,
		},
		Announce: AnnounceConfig{
			Window:         time.Second,
			Gap:            300 * time.Millisecond,
			AttemptTimeout: 15 * time.Second,
			LocalFallback:  true,
		},
		TTS: TTSConfig{
			Providers:  []string{ProviderElevenLabs, ProviderOpenAI},
			Timeout:    15 * time.Second,
			ElevenLabs: ElevenLabsConfig{Model: "eleven_turbo_v2"},
			OpenAI:     OpenAIConfig{Voice: "nova", Model: "tts-1"},
		},
		Voice: VoiceConfig{Enabled: true, ModelPath: "models/vosk-model-small-en-us-0.15", SampleRate: 16000},
		Audio: AudioConfig{Backend: "auto", InputRate: 16000, OutputRate: 24000, BufferDuration: 100 * time.Millisecond},
		Web:   WebConfig{Enabled: true, Addr: ":8080"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty. envFiles are loaded
// with godotenv; missing files are ignored. When envFiles is empty ".env"
// is tried.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigError reports an invalid field.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func invalid(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Message: err.Error(), Err: err}
}

// Validate checks every section.
func (c *Config) Validate() error {
	cam := c.Camera
	switch {
	case cam.Device == "":
		return &ConfigError{Field: "camera.device", Message: "must not be empty"}
	case cam.Width < 160 || cam.Height < 120:
		return &ConfigError{Field: "camera", Message: fmt.Sprintf("frame %dx%d too small", cam.Width, cam.Height)}
	case cam.Quality < 1 || cam.Quality > 100:
		return &ConfigError{Field: "camera.quality", Message: "must be between 1 and 100"}
	}

	if c.Detector.ModelPath == "" {
		return &ConfigError{Field: "detector.model_path", Message: "must not be empty"}
	}
	if c.Depth.Enabled && c.Depth.ModelPath == "" {
		return &ConfigError{Field: "depth.model_path", Message: "required when depth is enabled"}
	}

	if err := c.Guide.Config.Validate(); err != nil {
		return invalid("guide", err)
	}
	if t := c.Guide.MatchThreshold; t <= 0 || t > 1 {
		return &ConfigError{Field: "guide.match_threshold", Message: fmt.Sprintf("must be in (0,1], got %v", t)}
	}
	if err := c.Guide.Tracking.Validate(); err != nil {
		return invalid("guide.tracking", err)
	}
	if err := c.Guide.Guidance.Validate(); err != nil {
		return invalid("guide.guidance", err)
	}

	a := c.Announce
	if a.Window < 0 || a.Gap < 0 || a.AttemptTimeout <= 0 {
		return &ConfigError{Field: "announce", Message: "durations must be non-negative and attempt_timeout positive"}
	}

	for _, p := range c.TTS.Providers {
		switch strings.ToLower(p) {
		case ProviderElevenLabs, ProviderOpenAI:
		default:
			return &ConfigError{Field: "tts.providers", Message: fmt.Sprintf("unknown provider %q", p)}
		}
	}

	if c.Voice.Enabled && c.Voice.ModelPath == "" && c.Voice.ServerURL == "" {
		return &ConfigError{Field: "voice", Message: "model_path or server_url required when enabled"}
	}

	switch c.Audio.Backend {
	case "", "auto", "portaudio", "mock":
	default:
		return &ConfigError{Field: "audio.backend", Message: fmt.Sprintf("unknown backend %q", c.Audio.Backend)}
	}

	if c.Web.Enabled && c.Web.Addr == "" {
		return &ConfigError{Field: "web.addr", Message: "required when web is enabled"}
	}
	return nil
}
