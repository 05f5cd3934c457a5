//go:build !novosk

package voice

import (
	"fmt"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// Vosk runs a local Vosk model.
type Vosk struct {
	mu         sync.Mutex
	model      *vosk.VoskModel
	rec        *vosk.VoskRecognizer
	sampleRate int
}

// NewVosk loads the model directory at modelPath.
func NewVosk(modelPath string, sampleRate int) (*Vosk, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoModel, modelPath)
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("voice: load vosk model: %w", err)
	}
	rec, err := vosk.NewRecognizer(model, float64(sampleRate))
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("voice: create vosk recognizer: %w", err)
	}

	return &Vosk{model: model, rec: rec, sampleRate: sampleRate}, nil
}

func (v *Vosk) Name() string { return "vosk" }

// Accept feeds audio to the model.
func (v *Vosk) Accept(pcm []byte) (Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.rec == nil {
		return Result{}, ErrClosed
	}
	if v.rec.AcceptWaveform(pcm) != 0 {
		return parseResult([]byte(v.rec.Result()), true)
	}
	return parseResult([]byte(v.rec.PartialResult()), false)
}

// Flush returns the final result and resets the recognizer.
func (v *Vosk) Flush() (Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.rec == nil {
		return Result{}, ErrClosed
	}
	res, err := parseResult([]byte(v.rec.FinalResult()), true)
	v.rec.Reset()
	return res, err
}

// Close frees the recognizer and model.
func (v *Vosk) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.rec != nil {
		v.rec.Free()
		v.rec = nil
	}
	if v.model != nil {
		v.model.Free()
		v.model = nil
	}
	return nil
}

// VoskAvailable reports whether the local engine is compiled in.
func VoskAvailable() bool { return true }

var _ Recognizer = (*Vosk)(nil)
