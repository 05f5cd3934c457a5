package overlay

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/teslashibe/go-seek/pkg/guide"
	"github.com/teslashibe/go-seek/pkg/vision"
)

// Colors, RGB.
var (
	ColorDetection = color.RGBA{160, 160, 160, 255}
	ColorCandidate = color.RGBA{255, 210, 0, 255}
	ColorLocked    = color.RGBA{0, 220, 0, 255}
	ColorBanner    = color.RGBA{255, 255, 255, 255}
	ColorHint      = color.RGBA{200, 200, 200, 255}
)

// Hint is the command reminder drawn at the bottom of the window.
const Hint = `Say: "find <item>" | "what is this" | "read" | "stop" | "quit"`

// Annotation is one box to draw.
type Annotation struct {
	Box   vision.Box
	Color color.RGBA
	Label string
}

// Annotations lists the boxes to draw for a view, back to front.
func Annotations(v guide.View) []Annotation {
	out := make([]Annotation, 0, len(v.Detections)+len(v.Candidates)+1)
	for _, b := range v.Detections {
		out = append(out, Annotation{Box: b, Color: ColorDetection, Label: b.Label})
	}

	switch v.Mode {
	case guide.Find:
		if v.Locked {
			out = append(out, Annotation{Box: v.Target, Color: ColorLocked, Label: "TARGET: " + v.Query})
			break
		}
		for _, b := range v.Candidates {
			out = append(out, Annotation{Box: b, Color: ColorCandidate, Label: "scanning..."})
		}
	case guide.What:
		if v.HasFocus {
			out = append(out, Annotation{Box: v.Focus, Color: ColorCandidate, Label: "waiting..."})
		}
	case guide.Read:
		if v.HasFocus {
			out = append(out, Annotation{Box: v.Focus, Color: ColorCandidate, Label: "reading..."})
		}
	}
	return out
}

// StatusLine is the banner text for a view.
func StatusLine(v guide.View) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mode: %s", v.Mode)
	if v.Mode == guide.Find && v.Phrase != "" {
		sb.WriteString("  |  ")
		sb.WriteString(v.Phrase)
	}
	if v.Locked {
		sb.WriteString("  [LOCKED]")
	}
	if v.Mode == guide.What && v.Progress < 1 {
		sb.WriteString("  [ANALYZING...]")
	}
	return sb.String()
}
