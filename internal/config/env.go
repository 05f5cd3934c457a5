package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvElevenAPIKey  = "ELEVEN_API_KEY"
	EnvElevenVoiceID = "ELEVEN_VOICE_ID"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvCamera        = "SEEK_CAMERA"
	EnvWebAddr       = "SEEK_WEB_ADDR"
	EnvHeadless      = "SEEK_HEADLESS"
	EnvLogLevel      = "SEEK_LOG_LEVEL"
	EnvVoskModel     = "VOSK_MODEL"
	EnvVoskServerURL = "VOSK_SERVER_URL"
	EnvGoEnv         = "GO_ENV"
)

// loadDotEnv loads the given files into the process environment without
// overriding variables that are already set.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	c.TTS.ElevenLabs.APIKey = Env(EnvElevenAPIKey, c.TTS.ElevenLabs.APIKey)
	c.TTS.ElevenLabs.VoiceID = Env(EnvElevenVoiceID, c.TTS.ElevenLabs.VoiceID)
	c.TTS.OpenAI.APIKey = Env(EnvOpenAIAPIKey, c.TTS.OpenAI.APIKey)
	c.OCR.APIKey = Env(EnvGeminiAPIKey, c.OCR.APIKey)
	c.Camera.Device = Env(EnvCamera, c.Camera.Device)
	c.Web.Addr = Env(EnvWebAddr, c.Web.Addr)
	c.Log.Level = Env(EnvLogLevel, c.Log.Level)
	c.Voice.ModelPath = Env(EnvVoskModel, c.Voice.ModelPath)
	c.Voice.ServerURL = Env(EnvVoskServerURL, c.Voice.ServerURL)
	c.Headless = EnvBool(EnvHeadless, c.Headless)

	if os.Getenv(EnvGoEnv) == "production" {
		c.Log.JSON = true
	}
}

// Env returns the variable named key, or def when it is unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvBool parses the variable named key as a bool, or returns def.
func EnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
