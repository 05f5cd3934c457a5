// Package vision defines the detection box and the perception collaborators
// (object detection, text recognition, depth estimation) consumed by the
// guidance loop. Implementations live in subpackages; this package has no
// cgo dependencies.
package vision

import (
	"context"
	"fmt"
	"image"
	"io"
)

// Box is a single detection in pixel coordinates. Boxes carry no identity:
// the detector produces a fresh list every frame.
type Box struct {
	X1, Y1, X2, Y2 int
	Label          string
	Confidence     float64
}

// Width returns the box width in pixels.
func (b Box) Width() int {
	return b.X2 - b.X1
}

// Height returns the box height in pixels.
func (b Box) Height() int {
	return b.Y2 - b.Y1
}

// Area returns the box area in square pixels, 0 for degenerate boxes.
func (b Box) Area() int {
	if !b.Valid() {
		return 0
	}
	return b.Width() * b.Height()
}

// Center returns the center point of the box.
func (b Box) Center() (x, y float64) {
	return float64(b.X1+b.X2) / 2, float64(b.Y1+b.Y2) / 2
}

// Valid reports whether x1<x2 and y1<y2.
func (b Box) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Clamp returns the box restricted to a width x height frame.
// The result may be degenerate if the box lies outside the frame.
func (b Box) Clamp(width, height int) Box {
	b.X1 = clamp(b.X1, 0, width)
	b.X2 = clamp(b.X2, 0, width)
	b.Y1 = clamp(b.Y1, 0, height)
	b.Y2 = clamp(b.Y2, 0, height)
	return b
}

// Shift translates the box by (dx, dy).
func (b Box) Shift(dx, dy int) Box {
	b.X1 += dx
	b.X2 += dx
	b.Y1 += dy
	b.Y2 += dy
	return b
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

func (b Box) String() string {
	return fmt.Sprintf("%s(%.2f)[%d,%d,%d,%d]", b.Label, b.Confidence, b.X1, b.Y1, b.X2, b.Y2)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Frame is a captured camera image. Collaborators that need pixels
// type-assert to their own richer interface.
type Frame interface {
	Width() int
	Height() int
}

// Cloner is a frame whose pixels can be copied to outlive the capture
// tick that produced them.
type Cloner interface {
	Clone() Frame
}

// Retain returns a frame that stays valid after f is closed. Frames
// without pixel buffers are returned as is.
func Retain(f Frame) Frame {
	if c, ok := f.(Cloner); ok {
		return c.Clone()
	}
	return f
}

// Release closes f if it holds resources.
func Release(f Frame) {
	if c, ok := f.(io.Closer); ok {
		c.Close()
	}
}

// Dims is a pixel-less Frame, used where only the geometry matters.
type Dims struct {
	W, H int
}

func (d Dims) Width() int  { return d.W }
func (d Dims) Height() int { return d.H }

// Detector finds objects in a frame. Results are sorted by descending
// confidence and may be empty.
type Detector interface {
	Detect(frame Frame) ([]Box, error)
}

// TextRecognizer reads text inside a box of a frame.
type TextRecognizer interface {
	// Read returns the recognized text, possibly empty.
	Read(ctx context.Context, frame Frame, box Box) (string, error)

	// ReadWithConfidence returns the text and a confidence in [0,1].
	ReadWithConfidence(ctx context.Context, frame Frame, box Box) (string, float64, error)
}

// DepthEstimator samples relative depth inside a box.
type DepthEstimator interface {
	// SampleBoxDepth returns a depth in [0,1] where 1 is far and 0 is near.
	// ok is false when no estimate is available.
	SampleBoxDepth(frame Frame, box Box) (depth float64, ok bool)
}

// NopDetector never detects anything.
type NopDetector struct{}

func (NopDetector) Detect(Frame) ([]Box, error) { return nil, nil }

// NopRecognizer never recognizes text.
type NopRecognizer struct{}

func (NopRecognizer) Read(context.Context, Frame, Box) (string, error) { return "", nil }

func (NopRecognizer) ReadWithConfidence(context.Context, Frame, Box) (string, float64, error) {
	return "", 0, nil
}

// NopDepth never has a depth estimate.
type NopDepth struct{}

func (NopDepth) SampleBoxDepth(Frame, Box) (float64, bool) { return 0, false }

var (
	_ Detector       = NopDetector{}
	_ TextRecognizer = NopRecognizer{}
	_ DepthEstimator = NopDepth{}
)
