// Package camera captures frames from a local video device with gocv.
package camera

import (
	"fmt"
	"strconv"
)

// Config holds capture parameters.
type Config struct {
	// Device is a device index ("0") or a path/URL understood by OpenCV.
	Device    string `yaml:"device" json:"device"`
	Width     int    `yaml:"width" json:"width"`
	Height    int    `yaml:"height" json:"height"`
	Framerate int    `yaml:"framerate" json:"framerate"`

	// Quality is the JPEG quality used for crops sent to remote services.
	Quality int `yaml:"quality" json:"quality"`

	// Mirror flips frames horizontally (selfie cameras).
	Mirror bool `yaml:"mirror" json:"mirror"`
}

// DefaultConfig returns a 640x480 configuration on the first device.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   85,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string
	if c.Device == "" {
		errs = append(errs, "device must not be empty")
	}
	if c.Width < 160 || c.Width > 4096 {
		errs = append(errs, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > 2160 {
		errs = append(errs, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errs = append(errs, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, "quality must be between 1 and 100")
	}
	return errs
}

// deviceID returns the index for numeric devices, otherwise the string.
func (c *Config) deviceID() any {
	if n, err := strconv.Atoi(c.Device); err == nil {
		return n
	}
	return c.Device
}

func (c *Config) String() string {
	return fmt.Sprintf("%s@%dx%d/%dfps", c.Device, c.Width, c.Height, c.Framerate)
}
