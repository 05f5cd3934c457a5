//go:build novosk

package voice

// Vosk is unavailable in novosk builds.
type Vosk struct{}

// NewVosk always fails in novosk builds.
func NewVosk(modelPath string, sampleRate int) (*Vosk, error) {
	return nil, ErrUnavailable
}

func (v *Vosk) Name() string                      { return "vosk" }
func (v *Vosk) Accept(pcm []byte) (Result, error) { return Result{}, ErrUnavailable }
func (v *Vosk) Flush() (Result, error)            { return Result{}, ErrUnavailable }
func (v *Vosk) Close() error                      { return nil }

// VoskAvailable reports whether the local engine is compiled in.
func VoskAvailable() bool { return false }

var _ Recognizer = (*Vosk)(nil)
