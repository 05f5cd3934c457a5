package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teslashibe/go-seek/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Stopped.")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) != 8*960 {
			t.Errorf("expected %d bytes, got %d", 8*960, len(result.Audio))
		}
		if result.Format.SampleRate != 24000 {
			t.Errorf("expected 24000 sample rate, got %d", result.Format.SampleRate)
		}
		if result.Duration != 160*time.Millisecond {
			t.Errorf("expected 160ms, got %v", result.Duration)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		mock.Health(ctx)
		if got := mock.CallCount("Synthesize"); got != 1 {
			t.Errorf("expected 1 Synthesize call, got %d", got)
		}
		if got := len(mock.Calls()); got != 2 {
			t.Errorf("expected 2 calls, got %d", got)
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := mock.Synthesize(ctx, "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	failing := tts.WithError(errors.New("primary down"))

	t.Run("falls back to next provider", func(t *testing.T) {
		backup := tts.NewMock()
		chain, err := tts.NewChain(failing, backup)
		if err != nil {
			t.Fatalf("NewChain: %v", err)
		}

		result, err := chain.Synthesize(ctx, "Reading.")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Provider != "mock" {
			t.Errorf("provider = %q", result.Provider)
		}
		if backup.CallCount("Synthesize") != 1 {
			t.Error("backup not called")
		}
	})

	t.Run("all fail", func(t *testing.T) {
		second := tts.WithError(errors.New("backup down"))
		chain, _ := tts.NewChain(failing, second)

		_, err := chain.Synthesize(ctx, "Reading.")
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected ChainError, got %v", err)
		}
		if len(chainErr.Errors) != 2 {
			t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
		}
	})

	t.Run("empty chain", func(t *testing.T) {
		if _, err := tts.NewChain(); !errors.Is(err, tts.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("health passes with one healthy provider", func(t *testing.T) {
		chain, _ := tts.NewChain(failing, tts.NewMock())
		if err := chain.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("name", func(t *testing.T) {
		chain, _ := tts.NewChain(tts.NewMock(), tts.NewMock())
		if chain.Name() != "mock>mock" {
			t.Errorf("Name = %q", chain.Name())
		}
	})
}

func TestElevenLabs(t *testing.T) {
	var gotPath, gotKey, gotFormat string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotFormat = r.URL.Query().Get("output_format")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(make([]byte, 4800))
	}))
	defer srv.Close()

	p, err := tts.NewElevenLabs(
		tts.WithAPIKey("key"),
		tts.WithVoice("voice123"),
		tts.WithBaseURL(srv.URL),
		tts.WithRetry(0),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}

	result, err := p.Synthesize(context.Background(), "Looking for milk.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotPath != "/text-to-speech/voice123" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotFormat != "pcm_24000" {
		t.Errorf("output_format = %q", gotFormat)
	}
	if gotBody["model_id"] != tts.ModelTurboV2 {
		t.Errorf("model_id = %v", gotBody["model_id"])
	}
	if result.Duration != 100*time.Millisecond {
		t.Errorf("duration = %v", result.Duration)
	}
	if len(result.Samples()) != 2400 {
		t.Errorf("samples = %d", len(result.Samples()))
	}
}

func TestElevenLabs_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	p, _ := tts.NewElevenLabs(tts.WithAPIKey("bad"), tts.WithVoice("v"), tts.WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), "hello")

	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.IsRetryable() {
		t.Errorf("unexpected classification: %+v", apiErr)
	}
	if apiErr.Message != "Invalid API key" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestElevenLabs_Validation(t *testing.T) {
	if _, err := tts.NewElevenLabs(tts.WithVoice("v")); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
	if _, err := tts.NewElevenLabs(tts.WithAPIKey("k")); !errors.Is(err, tts.ErrNoVoiceID) {
		t.Errorf("expected ErrNoVoiceID, got %v", err)
	}
	if _, err := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithVoice("v"), tts.WithOutputFormat(tts.EncodingMP3)); err == nil {
		t.Error("expected error for compressed output")
	}
}

func TestOpenAI(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(make([]byte, 480))
	}))
	defer srv.Close()

	p, err := tts.NewOpenAI(tts.WithAPIKey("sk-test"), tts.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	result, err := p.Synthesize(context.Background(), "Stopped.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["response_format"] != "pcm" || gotBody["voice"] != tts.VoiceNova {
		t.Errorf("body = %v", gotBody)
	}
	if result.Format.Encoding != tts.EncodingPCM24 {
		t.Errorf("encoding = %s", result.Format.Encoding)
	}
}

func TestEmptyText(t *testing.T) {
	p, _ := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithBaseURL("http://127.0.0.1:1"))
	if _, err := p.Synthesize(context.Background(), "  "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}
