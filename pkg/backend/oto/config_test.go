// ABOUTME: Tests for the build independent parts of the oto backend
// ABOUTME: Drives the pull reader the way an oto player would
package oto

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

func TestPullReader(t *testing.T) {
	var frames []int
	r := newPullReader(func(out, in []float32, n int) {
		if in != nil {
			t.Errorf("expected no input, got %d samples", len(in))
		}
		frames = append(frames, n)
		for i := range out {
			out[i] = 0.5
		}
	}, 2)

	// 3 whole frames plus a partial one.
	p := make([]byte, 3*8+5)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 24 {
		t.Errorf("expected 24 bytes, got %d", n)
	}
	if len(frames) != 1 || frames[0] != 3 {
		t.Errorf("expected one callback of 3 frames, got %v", frames)
	}
	v := math.Float32frombits(uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24)
	if v != 0.5 {
		t.Errorf("expected 0.5, got %v", v)
	}

	if n, err := r.Read(make([]byte, 7)); n != 0 || err != nil {
		t.Errorf("expected empty read for less than a frame, got %d %v", n, err)
	}
	if len(frames) != 1 {
		t.Error("callback ran for less than a frame")
	}

	r.close()
	if _, err := r.Read(p); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after close, got %v", err)
	}
	if len(frames) != 1 {
		t.Error("callback ran after close")
	}
}

func TestIsDefault(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", true},
		{"default", true},
		{"hw:0", false},
	}
	for _, tt := range tests {
		if got := isDefault(device.ID(tt.id)); got != tt.want {
			t.Errorf("isDefault(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
