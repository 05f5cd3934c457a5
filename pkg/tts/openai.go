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
	openAIBaseURL  = "https://api.openai.com/v1"
	providerOpenAI = "openai"
)

// OpenAI voices and models.
const (
	VoiceAlloy   = "alloy"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"

	ModelTTS1     = "tts-1"
	ModelGPT4oTTS = "gpt-4o-mini-tts"
)

// OpenAI implements Provider for the OpenAI speech endpoint. It always
// requests raw 24 kHz PCM.
type OpenAI struct {
	config *Config
	client *resty.Client
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI provider. Only the API key is required.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceNova
	cfg.Apply(opts...)
	cfg.OutputFormat = EncodingPCM24

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = VoiceNova
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}

	client := httpc.NewResty(cfg.Timeout, cfg.MaxRetries).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(cfg.APIKey)

	return &OpenAI{
		config: cfg,
		client: client,
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Name returns "openai".
func (o *OpenAI) Name() string {
	return providerOpenAI
}

// Synthesize converts text to PCM audio.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}
	start := time.Now()

	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"model":           o.config.ModelID,
			"voice":           o.config.VoiceID,
			"input":           text,
			"response_format": "pcm",
		}).
		Post("/audio/speech")
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	if resp.IsError() {
		return nil, parseOpenAIError(resp)
	}

	audio := resp.Body()
	latency := time.Since(start).Milliseconds()
	format := pcmFormat(EncodingPCM24)

	o.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", o.config.VoiceID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  pcmDuration(len(audio), format.SampleRate),
		CharCount: len(text),
		LatencyMs: latency,
		Provider:  providerOpenAI,
	}, nil
}

// Health lists models to check the API key.
func (o *OpenAI) Health(ctx context.Context) error {
	resp, err := o.client.R().SetContext(ctx).Get("/models")
	if err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", err))
	}
	if resp.IsError() {
		return parseOpenAIError(resp)
	}
	return nil
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.client.GetClient().CloseIdleConnections()
	return nil
}

func parseOpenAIError(resp *resty.Response) error {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := resp.String()
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error.Message != "" {
		message = body.Error.Message
	}
	return &APIError{
		StatusCode: resp.StatusCode(),
		Message:    message,
		Provider:   providerOpenAI,
	}
}

var _ Provider = (*OpenAI)(nil)
