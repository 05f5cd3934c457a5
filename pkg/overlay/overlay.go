// Package overlay draws the guidance state on top of camera frames and
// shows them in a desktop window.
package overlay

import (
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-seek/pkg/guide"
	"github.com/teslashibe/go-seek/pkg/vision"
)

// QuitKey closes the window and ends the frame loop.
const QuitKey = 'q'

// MatFrame is a frame backed by an OpenCV image.
type MatFrame interface {
	vision.Frame
	Mat() gocv.Mat
}

// Window renders views into a named OpenCV window.
type Window struct {
	title  string
	logger *slog.Logger

	mu     sync.Mutex
	win    *gocv.Window
	closed bool
}

// NewWindow creates the window lazily on the first Render, so it is opened
// from the frame loop goroutine.
func NewWindow(title string, logger *slog.Logger) *Window {
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{title: title, logger: logger.With("component", "overlay")}
}

// Render draws view over frame and shows it. It reports true when the
// quit key was pressed.
func (w *Window) Render(frame vision.Frame, view guide.View) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	if w.win == nil {
		w.win = gocv.NewWindow(w.title)
		w.logger.Debug("window opened", "title", w.title)
	}

	if f, ok := frame.(MatFrame); ok {
		img := f.Mat()
		Draw(&img, view)
		w.win.IMShow(img)
	}

	key := w.win.WaitKey(1)
	if key >= 0 && key&0xFF == QuitKey {
		w.logger.Info("quit key pressed")
		return true
	}
	return false
}

// Close destroys the window.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}

// Draw paints boxes, the status banner and the command hint onto img.
func Draw(img *gocv.Mat, v guide.View) {
	for _, a := range Annotations(v) {
		drawBox(img, a)
	}

	gocv.PutText(img, StatusLine(v), image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, ColorBanner, 2)
	gocv.PutText(img, Hint, image.Pt(10, img.Rows()-12), gocv.FontHersheySimplex, 0.45, ColorHint, 1)

	if v.Mode == guide.What && v.Progress < 1 {
		drawProgress(img, v.Progress)
	}
}

func drawBox(img *gocv.Mat, a Annotation) {
	gocv.Rectangle(img, a.Box.Rect(), a.Color, 2)
	if a.Label == "" {
		return
	}
	pos := image.Pt(a.Box.X1, max(a.Box.Y1-6, 14))
	gocv.PutText(img, a.Label, pos, gocv.FontHersheySimplex, 0.55, a.Color, 2)
}

func drawProgress(img *gocv.Mat, progress float64) {
	const height = 6
	y := 34
	width := img.Cols() - 20
	outline := image.Rect(10, y, 10+width, y+height)
	gocv.Rectangle(img, outline, ColorHint, 1)

	filled := int(float64(width) * progress)
	if filled > 0 {
		gocv.Rectangle(img, image.Rect(10, y, 10+filled, y+height), ColorCandidate, -1)
	}
}

var _ guide.Renderer = (*Window)(nil)
