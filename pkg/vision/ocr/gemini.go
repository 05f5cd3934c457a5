// Package ocr reads text inside detection boxes using the Gemini
// generateContent API.
package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/teslashibe/go-seek/internal/httpc"
	"github.com/teslashibe/go-seek/pkg/vision"
)

// Errors returned by the recognizer.
var (
	ErrNoAPIKey = errors.New("ocr: API key required")
	ErrNoPixels = errors.New("ocr: frame cannot be cropped")
)

// Cropper is a frame that can encode a region as JPEG.
type Cropper interface {
	CropJPEG(box vision.Box) ([]byte, error)
}

const prompt = `Transcribe every piece of legible text in this image. ` +
	`Respond with JSON {"lines":[{"text":string,"confidence":number}]} where confidence is in [0,1]. ` +
	`Respond with {"lines":[]} if there is no legible text.`

// Config holds recognizer configuration.
type Config struct {
	APIKey        string        `yaml:"-"`
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	Retries       int           `yaml:"retries"`
	MinConfidence float64       `yaml:"min_confidence"`
	MinCropSize   int           `yaml:"min_crop_size"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://generativelanguage.googleapis.com/v1beta",
		Model:         "gemini-2.0-flash",
		Timeout:       10 * time.Second,
		Retries:       1,
		MinConfidence: 0.3,
		MinCropSize:   8,
	}
}

// Gemini is a vision.TextRecognizer backed by Gemini.
type Gemini struct {
	cfg    Config
	client *resty.Client
	logger *slog.Logger
}

// New creates a recognizer. Zero config fields take their defaults.
func New(cfg Config, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MinCropSize <= 0 {
		cfg.MinCropSize = def.MinCropSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := httpc.NewResty(cfg.Timeout, cfg.Retries).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", cfg.APIKey)

	return &Gemini{cfg: cfg, client: client, logger: logger}, nil
}

// Read returns the recognized text in box, or "".
func (g *Gemini) Read(ctx context.Context, frame vision.Frame, box vision.Box) (string, error) {
	text, _, err := g.ReadWithConfidence(ctx, frame, box)
	return text, err
}

// ReadWithConfidence returns the lines above MinConfidence joined with
// spaces, and their mean confidence.
func (g *Gemini) ReadWithConfidence(ctx context.Context, frame vision.Frame, box vision.Box) (string, float64, error) {
	c, ok := frame.(Cropper)
	if !ok {
		return "", 0, ErrNoPixels
	}
	box = box.Clamp(frame.Width(), frame.Height())
	if box.Width() < g.cfg.MinCropSize || box.Height() < g.cfg.MinCropSize {
		return "", 0, nil
	}

	img, err := c.CropJPEG(box)
	if err != nil {
		return "", 0, err
	}

	start := time.Now()
	lines, err := g.recognize(ctx, img)
	if err != nil {
		return "", 0, err
	}
	text, conf := combine(lines, g.cfg.MinConfidence)

	g.logger.Debug("text recognized",
		"label", box.Label,
		"text", text,
		"confidence", conf,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, conf, nil
}

type line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content      `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig"`
}

// generateResponse is the response structure from the Gemini API.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (g *Gemini) recognize(ctx context.Context, jpeg []byte) ([]line, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{
			{Text: prompt},
			{InlineData: &inlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(jpeg)}},
		}}},
		GenerationConfig: map[string]any{
			"temperature":      0,
			"maxOutputTokens":  512,
			"responseMimeType": "application/json",
		},
	}

	var out generateResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/models/%s:generateContent", g.cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("ocr: request failed: %w", err)
	}
	if resp.IsError() {
		msg := out.Error.Message
		if msg == "" {
			msg = truncate(resp.String(), 200)
		}
		return nil, fmt.Errorf("ocr: gemini error (status %d): %s", resp.StatusCode(), msg)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, nil
	}
	return parseLines(out.Candidates[0].Content.Parts[0].Text), nil
}

// parseLines decodes the structured answer. Free text is accepted as a
// single fully confident line.
func parseLines(raw string) []line {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var payload struct {
		Lines []line `json:"lines"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err == nil {
		return payload.Lines
	}
	return []line{{Text: raw, Confidence: 1}}
}

func combine(lines []line, minConf float64) (string, float64) {
	var (
		parts []string
		sum   float64
	)
	for _, l := range lines {
		t := strings.TrimSpace(l.Text)
		if t == "" || l.Confidence <= minConf {
			continue
		}
		parts = append(parts, t)
		sum += l.Confidence
	}
	if len(parts) == 0 {
		return "", 0
	}
	return strings.Join(parts, " "), sum / float64(len(parts))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

var _ vision.TextRecognizer = (*Gemini)(nil)
