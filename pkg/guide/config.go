package guide

import (
	"fmt"
	"time"
)

// Config holds the frame loop and mode handler settings.
type Config struct {
	// SkipFactor processes every Nth captured frame.
	SkipFactor int `yaml:"skip_factor"`

	// TopK is how many top-confidence detections Find mode reads.
	TopK int `yaml:"top_k"`

	// WaitFrames is how many processed frames What mode waits before
	// identifying the object.
	WaitFrames int `yaml:"wait_frames"`

	// Exclude lists labels What and Read never pick unless nothing else
	// is in view.
	Exclude []string `yaml:"exclude"`

	// RecognizeTimeout bounds one background text recognition pass.
	RecognizeTimeout time.Duration `yaml:"recognize_timeout"`

	// RecognizeBudget is how long a processed frame waits for text
	// recognition before moving on. Later frames pick up the result.
	RecognizeBudget time.Duration `yaml:"recognize_budget"`

	// RetryDelay is the pause after a failed camera read.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SkipFactor:       2,
		TopK:             2,
		WaitFrames:       40,
		Exclude:          []string{"person"},
		RecognizeTimeout: 5 * time.Second,
		RecognizeBudget:  100 * time.Millisecond,
		RetryDelay:       10 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SkipFactor < 1 {
		return fmt.Errorf("skip_factor must be >= 1, got %d", c.SkipFactor)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", c.TopK)
	}
	if c.WaitFrames < 0 {
		return fmt.Errorf("wait_frames must be >= 0, got %d", c.WaitFrames)
	}
	if c.RecognizeTimeout <= 0 {
		return fmt.Errorf("recognize_timeout must be positive, got %v", c.RecognizeTimeout)
	}
	if c.RecognizeBudget < 0 || c.RecognizeBudget >= time.Second {
		return fmt.Errorf("recognize_budget must be in [0, 1s), got %v", c.RecognizeBudget)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be >= 0, got %v", c.RetryDelay)
	}
	return nil
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SkipFactor < 1 {
		c.SkipFactor = def.SkipFactor
	}
	if c.TopK < 1 {
		c.TopK = def.TopK
	}
	if c.RecognizeTimeout <= 0 {
		c.RecognizeTimeout = def.RecognizeTimeout
	}
	if c.RecognizeBudget < 0 {
		c.RecognizeBudget = def.RecognizeBudget
	}
	if c.Exclude == nil {
		c.Exclude = def.Exclude
	}
	return c
}
