// Package guidance turns a target box and an optional depth sample into a
// spoken direction. Everything here is a pure function of its inputs.
package guidance

import (
	"fmt"
	"math"
	"strings"

	"github.com/teslashibe/go-seek/pkg/vision"
)

// Direction and proximity phrases.
const (
	Left     = "left"
	Right    = "right"
	Up       = "up"
	Down     = "down"
	Centered = "centered"

	MoveForward = "move forward"
	KeepGoing   = "keep going"
	AlmostThere = "almost there"
	Arrived     = "stop, it's right in front of you"
)

// Config holds the guidance thresholds.
type Config struct {
	// DeadZone is the half-width of the centered band as a fraction of the
	// frame dimension.
	DeadZone float64 `yaml:"dead_zone"`

	// Vertical enables up/down hints.
	Vertical bool `yaml:"vertical"`

	// AreaTiers are the box/frame area ratios separating the four
	// proximity phrases when no depth is available, ascending.
	AreaTiers [3]float64 `yaml:"area_tiers"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DeadZone:  0.1,
		Vertical:  true,
		AreaTiers: [3]float64{0.05, 0.15, 0.35},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DeadZone < 0 || c.DeadZone >= 0.5 {
		return fmt.Errorf("dead_zone must be in [0,0.5), got %v", c.DeadZone)
	}
	t := c.AreaTiers
	if !(0 < t[0] && t[0] < t[1] && t[1] < t[2] && t[2] <= 1) {
		return fmt.Errorf("area_tiers must be ascending within (0,1], got %v", t)
	}
	return nil
}

// Guidance is a computed direction.
type Guidance struct {
	Horizontal string
	Vertical   string // empty when centered or disabled
	Proximity  string
	FromDepth  bool // proximity came from a depth sample, not the area proxy
}

// Phrase joins the parts, e.g. "left, up, keep going".
func (g Guidance) Phrase() string {
	parts := []string{g.Horizontal}
	if g.Vertical != "" {
		parts = append(parts, g.Vertical)
	}
	parts = append(parts, g.Proximity)
	return strings.Join(parts, ", ")
}

func (g Guidance) String() string {
	return g.Phrase()
}

// Compute returns the guidance for box in a width x height frame. depth is
// used when hasDepth is true; otherwise the box's share of the frame area
// stands in for it.
func (c Config) Compute(box vision.Box, width, height int, depth float64, hasDepth bool) Guidance {
	box = box.Clamp(width, height)
	cx, cy := box.Center()

	g := Guidance{
		Horizontal: axis(cx, float64(width), c.DeadZone, Left, Right),
	}
	if c.Vertical {
		if v := axis(cy, float64(height), c.DeadZone, Up, Down); v != Centered {
			g.Vertical = v
		}
	}

	if hasDepth && !math.IsNaN(depth) {
		g.Proximity = DepthPhrase(depth)
		g.FromDepth = true
	} else {
		g.Proximity = c.AreaPhrase(box, width, height)
	}
	return g
}

func axis(center, size, deadZone float64, low, high string) string {
	offset := center - size/2
	band := deadZone * size
	switch {
	case offset < -band:
		return low
	case offset > band:
		return high
	default:
		return Centered
	}
}

// DepthPhrase maps a depth in [0,1] (1 far) to a proximity phrase.
func DepthPhrase(depth float64) string {
	switch {
	case depth > 0.75:
		return MoveForward
	case depth > 0.5:
		return KeepGoing
	case depth > 0.25:
		return AlmostThere
	default:
		return Arrived
	}
}

// AreaPhrase maps the box's share of the frame to a proximity phrase.
// Larger boxes are treated as closer.
func (c Config) AreaPhrase(box vision.Box, width, height int) string {
	frame := width * height
	if frame <= 0 {
		return MoveForward
	}
	ratio := float64(box.Area()) / float64(frame)
	switch {
	case ratio < c.AreaTiers[0]:
		return MoveForward
	case ratio < c.AreaTiers[1]:
		return KeepGoing
	case ratio < c.AreaTiers[2]:
		return AlmostThere
	default:
		return Arrived
	}
}
