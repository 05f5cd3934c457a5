package camera

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-seek/pkg/vision"
)

// ErrReadFailed is returned when the device yields no frame. Callers retry
// on the next tick.
var ErrReadFailed = errors.New("camera: read failed")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("camera: closed")

// Capture reads frames from a video device.
type Capture struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	seq    uint64
	closed bool
}

// Open opens the configured device and requests the configured size.
func Open(cfg Config, logger *slog.Logger) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	vc, err := gocv.OpenVideoCapture(cfg.deviceID())
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	logger.Info("camera opened",
		"device", cfg.Device,
		"width", cfg.Width,
		"height", cfg.Height,
		"fps", cfg.Framerate,
	)

	return &Capture{cfg: cfg, logger: logger, vc: vc}, nil
}

// Read captures the next frame, resized to the configured size. The caller
// owns the frame and must Close it.
func (c *Capture) Read() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	raw := gocv.NewMat()
	if ok := c.vc.Read(&raw); !ok || raw.Empty() {
		raw.Close()
		return nil, ErrReadFailed
	}

	mat := raw
	if raw.Cols() != c.cfg.Width || raw.Rows() != c.cfg.Height {
		mat = gocv.NewMat()
		gocv.Resize(raw, &mat, image.Pt(c.cfg.Width, c.cfg.Height), 0, 0, gocv.InterpolationLinear)
		raw.Close()
	}
	if c.cfg.Mirror {
		gocv.Flip(mat, &mat, 1)
	}

	c.seq++
	return &Frame{mat: mat, seq: c.seq, quality: c.cfg.Quality}, nil
}

// Next implements the frame loop's source contract.
func (c *Capture) Next() (vision.Frame, error) {
	f, err := c.Read()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Config returns the capture configuration.
func (c *Capture) Config() Config {
	return c.cfg
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("camera closed", "frames", c.seq)
	return c.vc.Close()
}
