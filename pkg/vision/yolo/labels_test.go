package yolo

import "testing"

func TestLabel(t *testing.T) {
	tests := []struct {
		class int
		want  string
	}{
		{0, "person"},
		{39, "bottle"},
		{41, "cup"},
		{73, "book"},
		{79, "toothbrush"},
		{80, "class 80"},
		{-1, "class -1"},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := Label(tc.class); got != tc.want {
				t.Errorf("Label(%d) = %q, want %q", tc.class, got, tc.want)
			}
		})
	}
}

func TestCOCOClassesCount(t *testing.T) {
	if len(COCOClasses) != 80 {
		t.Errorf("expected 80 classes, got %d", len(COCOClasses))
	}
}
