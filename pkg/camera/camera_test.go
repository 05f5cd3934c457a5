package camera

import (
	"bytes"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-seek/pkg/vision"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"empty device", func(c *Config) { c.Device = "" }, true},
		{"tiny width", func(c *Config) { c.Width = 100 }, true},
		{"zero fps", func(c *Config) { c.Framerate = 0 }, true},
		{"quality over 100", func(c *Config) { c.Quality = 101 }, true},
		{"video file", func(c *Config) { c.Device = "testdata/aisle.mp4" }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			errs := cfg.Validate()
			if (len(errs) > 0) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", errs, tc.wantErr)
			}
		})
	}
}

func TestConfig_DeviceID(t *testing.T) {
	cfg := DefaultConfig()
	if id, ok := cfg.deviceID().(int); !ok || id != 0 {
		t.Errorf("deviceID = %v, want int 0", cfg.deviceID())
	}
	cfg.Device = "rtsp://cam.local/stream"
	if id, ok := cfg.deviceID().(string); !ok || id != cfg.Device {
		t.Errorf("deviceID = %v, want URL string", cfg.deviceID())
	}
}

func TestFrame_CropJPEG(t *testing.T) {
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	f := NewFrame(mat, 80)
	defer f.Close()

	if f.Width() != 640 || f.Height() != 480 {
		t.Fatalf("size = %dx%d", f.Width(), f.Height())
	}

	data, err := f.CropJPEG(vision.Box{X1: 600, Y1: 400, X2: 700, Y2: 500})
	if err != nil {
		t.Fatalf("CropJPEG: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Error("crop is not a JPEG")
	}

	if _, err := f.CropJPEG(vision.Box{X1: 700, Y1: 0, X2: 800, Y2: 10}); err == nil {
		t.Error("expected error for crop outside the frame")
	}
}

func TestFrame_CloneOutlivesOriginal(t *testing.T) {
	f := NewFrame(gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3), 80)
	clone := vision.Retain(f)
	f.Close()
	defer vision.Release(clone)

	if clone.Width() != 640 || clone.Height() != 480 {
		t.Fatalf("clone size = %dx%d", clone.Width(), clone.Height())
	}
	if _, err := clone.(*Frame).CropJPEG(vision.Box{X1: 0, Y1: 0, X2: 64, Y2: 64}); err != nil {
		t.Fatalf("CropJPEG on clone: %v", err)
	}
}
