// Package tracking keeps a locked target associated with the detector's
// per-frame output, which carries no object identity, by spatial overlap.
package tracking

import "fmt"

// Config holds the association parameters.
type Config struct {
	// IoUThreshold is the minimum overlap for a detection to be accepted as
	// the target's new position.
	IoUThreshold float64 `yaml:"iou_threshold"`

	// MaxCoast is the number of consecutive unmatched updates after which
	// the target is declared lost. 0 coasts forever.
	MaxCoast int `yaml:"max_coast"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		IoUThreshold: 0.3,
		MaxCoast:     0,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("iou_threshold must be in (0,1], got %v", c.IoUThreshold)
	}
	if c.MaxCoast < 0 {
		return fmt.Errorf("max_coast must be >= 0, got %d", c.MaxCoast)
	}
	return nil
}
