package camera

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-seek/pkg/vision"
)

// Frame is a captured BGR image.
type Frame struct {
	mat     gocv.Mat
	seq     uint64
	quality int
}

// NewFrame wraps an existing Mat. The frame takes ownership of mat.
func NewFrame(mat gocv.Mat, quality int) *Frame {
	return &Frame{mat: mat, quality: quality}
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.mat.Cols() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.mat.Rows() }

// Seq returns the capture sequence number, starting at 1.
func (f *Frame) Seq() uint64 { return f.seq }

// Mat returns the underlying image. It stays owned by the frame.
func (f *Frame) Mat() gocv.Mat { return f.mat }

// Clone copies the image so it can be used after f is closed.
func (f *Frame) Clone() vision.Frame {
	return &Frame{mat: f.mat.Clone(), seq: f.seq, quality: f.quality}
}

// CropJPEG encodes the region of box, clamped to the frame, as JPEG.
func (f *Frame) CropJPEG(box vision.Box) ([]byte, error) {
	b := box.Clamp(f.Width(), f.Height())
	if !b.Valid() {
		return nil, fmt.Errorf("camera: crop %v outside frame", box)
	}

	region := f.mat.Region(b.Rect())
	defer region.Close()

	quality := f.quality
	if quality <= 0 {
		quality = 85
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, region, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("camera: encode crop: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the image.
func (f *Frame) Close() error {
	return f.mat.Close()
}

var (
	_ vision.Frame  = (*Frame)(nil)
	_ vision.Cloner = (*Frame)(nil)
)
