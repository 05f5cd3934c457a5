// Package voice turns microphone audio into guidance commands.
//
// A Recognizer consumes 16 kHz mono PCM16 and reports partial and final
// transcripts. Two recognizers are bundled: Vosk runs an in-process model
// through the vosk-api bindings, VoskServer streams to a remote
// vosk-server over WebSocket. The Listener glues an audio source, a
// recognizer and the command channel together.
package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultSampleRate is the rate recognizers expect.
const DefaultSampleRate = 16000

// Common errors.
var (
	ErrClosed      = errors.New("voice: recognizer closed")
	ErrUnavailable = errors.New("voice: recognizer not available in this build")
	ErrNoModel     = errors.New("voice: model path not found")
)

// Result is one recognizer output.
type Result struct {
	Text  string
	Final bool
}

// Recognizer streams PCM16 audio into transcripts.
type Recognizer interface {
	// Accept feeds little-endian PCM16 mono audio. A Final result marks the
	// end of an utterance; otherwise Text holds the current partial.
	Accept(pcm []byte) (Result, error)

	// Flush ends the current utterance and returns whatever is pending.
	Flush() (Result, error)

	Name() string
	Close() error
}

// voskResult covers the JSON emitted by both libvosk and vosk-server.
type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

func parseResult(raw []byte, final bool) (Result, error) {
	var r voskResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return Result{}, fmt.Errorf("voice: decode result: %w", err)
	}
	if final {
		return Result{Text: strings.TrimSpace(r.Text), Final: true}, nil
	}
	if r.Partial != "" {
		return Result{Text: strings.TrimSpace(r.Partial)}, nil
	}
	// vosk-server sends {"text": ...} when it detects an utterance end.
	if r.Text != "" {
		return Result{Text: strings.TrimSpace(r.Text), Final: true}, nil
	}
	return Result{}, nil
}
