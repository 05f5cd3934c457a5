// Package midas estimates relative depth with a MiDaS ONNX model.
package midas

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-seek/pkg/vision"
)

// MatFrame is a frame backed by an OpenCV image.
type MatFrame interface {
	vision.Frame
	Mat() gocv.Mat
}

// Config holds estimator configuration.
type Config struct {
	ModelPath string `yaml:"model_path"`
	InputSize int    `yaml:"input_size"`
}

// DefaultConfig returns defaults for MiDaS v2.1 small.
func DefaultConfig() Config {
	return Config{
		ModelPath: "models/midas_v21_small_256.onnx",
		InputSize: 256,
	}
}

// Estimator samples depth inside boxes. Depth is normalized per frame to
// [0,1] with 1 far and 0 near.
type Estimator struct {
	net    gocv.Net
	cfg    Config
	logger *slog.Logger
	mu     sync.Mutex
}

// New loads the model.
func New(cfg Config, logger *slog.Logger) (*Estimator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultConfig().InputSize
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("midas: model %s: %w", cfg.ModelPath, err)
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("midas: failed to load model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	logger.Info("depth estimator loaded", "model", cfg.ModelPath, "input", cfg.InputSize)
	return &Estimator{net: net, cfg: cfg, logger: logger}, nil
}

// SampleBoxDepth runs the model on the frame and returns the median depth
// over the inner half of the box.
func (e *Estimator) SampleBoxDepth(frame vision.Frame, box vision.Box) (float64, bool) {
	mf, ok := frame.(MatFrame)
	if !ok {
		return 0, false
	}
	img := mf.Mat()
	if img.Empty() {
		return 0, false
	}
	box = box.Clamp(img.Cols(), img.Rows())
	if !box.Valid() {
		return 0, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	size := e.cfg.InputSize
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil || len(data) < size*size {
		e.logger.Debug("depth output unreadable", "error", err)
		return 0, false
	}

	grid := scaleBox(box, img.Cols(), img.Rows(), size)
	return samplePatch(data[:size*size], size, grid)
}

// Close releases the network.
func (e *Estimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}

// scaleBox maps a frame box into the square model grid.
func scaleBox(b vision.Box, w, h, size int) vision.Box {
	sx := float64(size) / float64(w)
	sy := float64(size) / float64(h)
	return vision.Box{
		X1: int(float64(b.X1) * sx),
		Y1: int(float64(b.Y1) * sy),
		X2: int(float64(b.X2) * sx),
		Y2: int(float64(b.Y2) * sy),
	}.Clamp(size, size)
}

// samplePatch converts the inverse-depth map to depth in [0,1] and returns
// the median over the inner 50% of box.
func samplePatch(inv []float32, size int, box vision.Box) (float64, bool) {
	lo, hi := inv[0], inv[0]
	for _, v := range inv {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span <= 0 {
		return 0, false
	}

	dx, dy := box.Width()/4, box.Height()/4
	inner := vision.Box{X1: box.X1 + dx, Y1: box.Y1 + dy, X2: box.X2 - dx, Y2: box.Y2 - dy}
	if !inner.Valid() {
		inner = box
	}
	if !inner.Valid() {
		return 0, false
	}

	vals := make([]float64, 0, inner.Area())
	for y := inner.Y1; y < inner.Y2; y++ {
		for x := inner.X1; x < inner.X2; x++ {
			// MiDaS predicts inverse depth: large values are near.
			vals = append(vals, 1-float64((inv[y*size+x]-lo)/span))
		}
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2], true
	}
	return (vals[n/2-1] + vals[n/2]) / 2, true
}

var _ vision.DepthEstimator = (*Estimator)(nil)
