package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/teslashibe/go-seek/internal/httpc"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"
)

// ElevenLabs model IDs.
const (
	ModelTurboV2   = "eleven_turbo_v2"
	ModelTurboV2_5 = "eleven_turbo_v2_5"
	ModelFlashV2_5 = "eleven_flash_v2_5"
)

// ElevenLabs implements Provider for the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	config *Config
	client *resty.Client
	logger *slog.Logger
}

// NewElevenLabs creates an ElevenLabs provider. API key and voice are
// required.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}
	if !cfg.OutputFormat.IsPCM() {
		return nil, fmt.Errorf("tts: elevenlabs output must be PCM, got %s", cfg.OutputFormat)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	client := httpc.NewResty(cfg.Timeout, cfg.MaxRetries).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("xi-api-key", cfg.APIKey)

	return &ElevenLabs{
		config: cfg,
		client: client,
		logger: cfg.Logger.With("component", "tts.elevenlabs"),
	}, nil
}

// Name returns "elevenlabs".
func (e *ElevenLabs) Name() string {
	return providerElevenLabs
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// Synthesize converts text to PCM audio.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerElevenLabs, ErrEmptyText)
	}
	start := time.Now()

	vs := e.config.VoiceSettings
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "audio/pcm").
		SetQueryParam("output_format", string(e.config.OutputFormat)).
		SetBody(elevenLabsRequest{
			Text:    text,
			ModelID: e.config.ModelID,
			VoiceSettings: elevenLabsSettings{
				Stability:       vs.Stability,
				SimilarityBoost: vs.SimilarityBoost,
				Style:           vs.Style,
				SpeakerBoost:    vs.SpeakerBoost,
			},
		}).
		Post("/text-to-speech/" + e.config.VoiceID)
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}
	if resp.IsError() {
		return nil, parseElevenLabsError(resp)
	}

	audio := resp.Body()
	latency := time.Since(start).Milliseconds()
	format := pcmFormat(e.config.OutputFormat)

	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", e.config.ModelID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  pcmDuration(len(audio), format.SampleRate),
		CharCount: len(text),
		LatencyMs: latency,
		Provider:  providerElevenLabs,
	}, nil
}

// Health checks API connectivity and API key validity.
func (e *ElevenLabs) Health(ctx context.Context) error {
	resp, err := e.client.R().SetContext(ctx).Get("/user")
	if err != nil {
		return WrapError(providerElevenLabs, fmt.Errorf("health check: %w", err))
	}
	if resp.IsError() {
		return parseElevenLabsError(resp)
	}
	return nil
}

// Close releases idle connections.
func (e *ElevenLabs) Close() error {
	e.client.GetClient().CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice ID.
func (e *ElevenLabs) VoiceID() string {
	return e.config.VoiceID
}

func parseElevenLabsError(resp *resty.Response) error {
	var body struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}
	message := resp.String()
	if json.Unmarshal(resp.Body(), &body) == nil && body.Detail.Message != "" {
		message = body.Detail.Message
	}
	return &APIError{
		StatusCode: resp.StatusCode(),
		Message:    message,
		Provider:   providerElevenLabs,
	}
}

var _ Provider = (*ElevenLabs)(nil)
