// ABOUTME: Tests for CPU usage smoothing
// ABOUTME: Verifies the instantaneous load and the exponential moving average
package device

import (
	"math"
	"testing"
	"time"
)

func TestCPUMeterUpdate(t *testing.T) {
	m := newCPUMeter(DefaultCPUSmoothing)

	// 5ms of work for a 10ms period.
	m.update(5*time.Millisecond, 480, 48000)

	if got := m.Instant(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected instant 0.5, got %v", got)
	}
	if got := m.Average(); math.Abs(got-0.05) > 1e-9 {
		t.Errorf("expected average 0.05, got %v", got)
	}
}

func TestCPUMeterAverageConverges(t *testing.T) {
	m := newCPUMeter(0.1)

	for i := 1; i <= 50; i++ {
		m.record(1)
		want := 1 - math.Pow(0.9, float64(i))
		if got := m.Average(); math.Abs(got-want) > 1e-9 {
			t.Fatalf("after %d samples expected %v, got %v", i, want, got)
		}
	}
}

func TestCPUMeterIgnoresEmptyCallbacks(t *testing.T) {
	m := newCPUMeter(0.1)
	m.update(time.Millisecond, 0, 48000)
	m.update(time.Millisecond, 480, 0)

	if m.Instant() != 0 || m.Average() != 0 {
		t.Errorf("expected no samples recorded, got %v/%v", m.Instant(), m.Average())
	}
}

func TestWithCPUSmoothing(t *testing.T) {
	tests := []struct {
		alpha float64
		want  float64
	}{
		{0.5, 0.5},
		{1, 1},
		{0, DefaultCPUSmoothing},
		{1.5, DefaultCPUSmoothing},
	}

	for _, tt := range tests {
		cfg := defaultConfig()
		WithCPUSmoothing(tt.alpha)(&cfg)
		if cfg.cpuAlpha != tt.want {
			t.Errorf("WithCPUSmoothing(%v): expected %v, got %v", tt.alpha, tt.want, cfg.cpuAlpha)
		}
	}
}
