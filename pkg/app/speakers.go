package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-seek/internal/config"
	"github.com/teslashibe/go-seek/pkg/announce"
	"github.com/teslashibe/go-seek/pkg/audioio"
	"github.com/teslashibe/go-seek/pkg/tts"
)

// initSpeakers builds the ordered speaker list: the synthesized voice
// chain played through the audio sink, then the local speech engine.
func (a *App) initSpeakers(ctx context.Context) []announce.Speaker {
	var speakers []announce.Speaker

	providers := buildProviders(a.cfg.TTS, a.logger)
	if len(providers) > 0 {
		sink, err := audioio.NewSink(playbackConfig(a.cfg.Audio), a.logger)
		if err == nil {
			err = sink.Start(ctx)
		}
		if err != nil {
			a.logger.Warn("audio output unavailable, synthesized voice disabled", "error", err)
		} else {
			a.closers = append(a.closers, sink)
			chain, err := tts.NewChainWithLogger(a.logger, providers...)
			if err == nil {
				speakers = append(speakers, announce.NewSynthSpeaker(chain, audioio.Player{Sink: sink}))
			}
		}
	}

	if a.cfg.Announce.LocalFallback {
		local, err := announce.NewLocalSpeaker()
		if err != nil {
			a.logger.Warn("local speech engine unavailable", "error", err)
		} else {
			speakers = append(speakers, local)
		}
	}

	if len(speakers) == 0 {
		a.logger.Warn("no speakers configured, announcements will only be logged")
	}
	return speakers
}

// buildProviders creates the configured synthesis providers in order,
// skipping those without credentials.
func buildProviders(cfg config.TTSConfig, logger *slog.Logger) []tts.Provider {
	var providers []tts.Provider
	for _, name := range cfg.Providers {
		var (
			p   tts.Provider
			err error
		)
		switch strings.ToLower(name) {
		case config.ProviderElevenLabs:
			if cfg.ElevenLabs.APIKey == "" || cfg.ElevenLabs.VoiceID == "" {
				logger.Debug("elevenlabs skipped, missing api key or voice id")
				continue
			}
			p, err = tts.NewElevenLabs(providerOptions(cfg, cfg.ElevenLabs.APIKey, cfg.ElevenLabs.VoiceID, cfg.ElevenLabs.Model, logger)...)
		case config.ProviderOpenAI:
			if cfg.OpenAI.APIKey == "" {
				logger.Debug("openai skipped, missing api key")
				continue
			}
			p, err = tts.NewOpenAI(providerOptions(cfg, cfg.OpenAI.APIKey, cfg.OpenAI.Voice, cfg.OpenAI.Model, logger)...)
		default:
			continue
		}
		if err != nil {
			logger.Warn("tts provider unavailable", "provider", name, "error", err)
			continue
		}
		providers = append(providers, p)
	}
	return providers
}

func providerOptions(cfg config.TTSConfig, key, voice, model string, logger *slog.Logger) []tts.Option {
	opts := []tts.Option{tts.WithAPIKey(key), tts.WithLogger(logger)}
	if voice != "" {
		opts = append(opts, tts.WithVoice(voice))
	}
	if model != "" {
		opts = append(opts, tts.WithModel(model))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, tts.WithTimeout(cfg.Timeout))
	}
	return opts
}
