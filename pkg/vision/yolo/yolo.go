// Package yolo detects objects with a YOLOv8 ONNX model through OpenCV's
// DNN module.
package yolo

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-seek/pkg/vision"
)

// ErrNoPixels is returned when a frame does not expose an image.
var ErrNoPixels = errors.New("yolo: frame has no pixel data")

// MatFrame is a frame backed by an OpenCV image.
type MatFrame interface {
	vision.Frame
	Mat() gocv.Mat
}

// Config holds detector configuration.
type Config struct {
	ModelPath        string  `yaml:"model_path"`
	ConfidenceThresh float32 `yaml:"confidence"`
	NMSThresh        float32 `yaml:"nms"`
	InputSize        int     `yaml:"input_size"`
}

// DefaultConfig returns defaults for yolov8n.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.25,
		NMSThresh:        0.45,
		InputSize:        640,
	}
}

// Detector runs YOLOv8 on captured frames.
type Detector struct {
	net    gocv.Net
	cfg    Config
	logger *slog.Logger
	mu     sync.Mutex
}

// New loads the model. A missing file is an error; callers fall back to
// vision.NopDetector.
func New(cfg Config, logger *slog.Logger) (*Detector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultConfig().InputSize
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("yolo: model %s: %w", cfg.ModelPath, err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("yolo: failed to load model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	logger.Info("object detector loaded", "model", cfg.ModelPath, "input", cfg.InputSize)
	return &Detector{net: net, cfg: cfg, logger: logger}, nil
}

// Detect returns labeled boxes clamped to the frame and sorted by
// descending confidence.
func (d *Detector) Detect(frame vision.Frame) ([]vision.Box, error) {
	mf, ok := frame.(MatFrame)
	if !ok {
		return nil, ErrNoPixels
	}
	img := mf.Mat()
	if img.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := image.Pt(d.cfg.InputSize, d.cfg.InputSize)
	blob := gocv.BlobFromImage(img, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	boxes, err := d.parse(output, img.Cols(), img.Rows())
	if err != nil {
		return nil, err
	}
	return vision.Normalize(boxes, img.Cols(), img.Rows()), nil
}

// parse decodes the [1, 84, N] YOLOv8 output: 4 box values (cx, cy, w, h)
// followed by 80 class scores per candidate.
func (d *Detector) parse(output gocv.Mat, imgW, imgH int) ([]vision.Box, error) {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("yolo: unexpected output shape %v", sizes)
	}
	attrs, candidates := sizes[1], sizes[2]
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("yolo: read output: %w", err)
	}

	sx := float32(imgW) / float32(d.cfg.InputSize)
	sy := float32(imgH) / float32(d.cfg.InputSize)

	var (
		rects   []image.Rectangle
		scores  []float32
		classes []int
	)
	for i := 0; i < candidates; i++ {
		best, class := float32(0), 0
		for c := 4; c < attrs; c++ {
			if s := data[c*candidates+i]; s > best {
				best, class = s, c-4
			}
		}
		if best < d.cfg.ConfidenceThresh {
			continue
		}

		cx, cy := data[i], data[candidates+i]
		w, h := data[2*candidates+i], data[3*candidates+i]
		rects = append(rects, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		scores = append(scores, best)
		classes = append(classes, class)
	}
	if len(rects) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(rects, scores, d.cfg.ConfidenceThresh, d.cfg.NMSThresh)
	out := make([]vision.Box, 0, len(keep))
	for _, idx := range keep {
		r := rects[idx]
		out = append(out, vision.Box{
			X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y,
			Label:      Label(classes[idx]),
			Confidence: float64(scores[idx]),
		})
	}
	return out, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

var _ vision.Detector = (*Detector)(nil)
