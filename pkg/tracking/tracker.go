package tracking

import (
	"github.com/teslashibe/go-seek/pkg/vision"
)

// IoU returns the intersection-over-union of two boxes, 0 when they do not
// overlap or either is degenerate.
func IoU(a, b vision.Box) float64 {
	ix1, iy1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	ix2, iy2 := min(a.X2, b.X2), min(a.Y2, b.Y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Track is the state of a locked target. At most one exists per find
// session; the zero value is unlocked.
type Track struct {
	Box     vision.Box
	Locked  bool
	Coasted int // consecutive updates without a match
	Updates int
}

// Result describes one association step.
type Result struct {
	Box     vision.Box // the target's position after the update
	IoU     float64    // best overlap found, 0 when nothing overlapped
	Matched bool       // a detection cleared the threshold
	Lost    bool       // coasting exceeded MaxCoast; the track is now unlocked
}

// Tracker associates a Track with fresh detections. It is deterministic:
// the same previous box and detection list always give the same result.
type Tracker struct {
	cfg Config
}

// New creates a tracker. Invalid thresholds fall back to the defaults.
func New(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.IoUThreshold <= 0 || cfg.IoUThreshold > 1 {
		cfg.IoUThreshold = def.IoUThreshold
	}
	if cfg.MaxCoast < 0 {
		cfg.MaxCoast = def.MaxCoast
	}
	return &Tracker{cfg: cfg}
}

// Lock starts tracking box.
func (t *Tracker) Lock(box vision.Box) Track {
	return Track{Box: box, Locked: true}
}

// Update moves the track to the detection with the highest IoU if it
// clears the threshold. Otherwise the track coasts on its previous box.
// Ties keep the earlier (higher confidence) detection.
func (t *Tracker) Update(tr *Track, dets []vision.Box) Result {
	if !tr.Locked {
		return Result{Box: tr.Box}
	}
	tr.Updates++

	best, bestIoU := -1, 0.0
	for i, d := range dets {
		if iou := IoU(tr.Box, d); iou > bestIoU {
			best, bestIoU = i, iou
		}
	}

	if best >= 0 && bestIoU >= t.cfg.IoUThreshold {
		tr.Box = dets[best]
		tr.Coasted = 0
		return Result{Box: tr.Box, IoU: bestIoU, Matched: true}
	}

	tr.Coasted++
	res := Result{Box: tr.Box, IoU: bestIoU}
	if t.cfg.MaxCoast > 0 && tr.Coasted > t.cfg.MaxCoast {
		tr.Locked = false
		res.Lost = true
	}
	return res
}
