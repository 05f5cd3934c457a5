package vision

import (
	"sort"
	"strings"
)

// Normalize clamps every box to the frame, drops degenerate ones and sorts
// the rest by descending confidence. The input slice is not modified.
func Normalize(boxes []Box, width, height int) []Box {
	out := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		c := b.Clamp(width, height)
		if c.Valid() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// TopK returns the first k boxes of a confidence-sorted list.
func TopK(boxes []Box, k int) []Box {
	if k <= 0 {
		return nil
	}
	if k > len(boxes) {
		k = len(boxes)
	}
	return boxes[:k]
}

// Largest returns the box with the greatest area. Ties keep the earlier box.
func Largest(boxes []Box) (Box, bool) {
	best := -1
	for i, b := range boxes {
		if best < 0 || b.Area() > boxes[best].Area() {
			best = i
		}
	}
	if best < 0 {
		return Box{}, false
	}
	return boxes[best], true
}

// LargestExcluding returns the largest box whose label is not in exclude.
// When every box is excluded it falls back to the largest box overall.
func LargestExcluding(boxes []Box, exclude []string) (Box, bool) {
	kept := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		if !labelIn(b.Label, exclude) {
			kept = append(kept, b)
		}
	}
	if len(kept) > 0 {
		return Largest(kept)
	}
	return Largest(boxes)
}

func labelIn(label string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(label, s) {
			return true
		}
	}
	return false
}
