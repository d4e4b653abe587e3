// ABOUTME: CPU usage tracking for the audio callback
// ABOUTME: Keeps an instantaneous load and an exponentially smoothed average
package device

import (
	"math"
	"sync/atomic"
	"time"
)

// cpuMeter measures callback work against the callback period. Only the
// callback path writes; readers load the published values atomically.
type cpuMeter struct {
	alpha   float64
	instant atomic.Uint64 // float64 bits
	average atomic.Uint64 // float64 bits
}

func newCPUMeter(alpha float64) *cpuMeter {
	return &cpuMeter{alpha: alpha}
}

// update records one callback that spent elapsed producing frames frames at
// rate Hz.
func (m *cpuMeter) update(elapsed time.Duration, frames, rate int) {
	if frames <= 0 || rate <= 0 {
		return
	}
	period := float64(frames) / float64(rate)
	instant := elapsed.Seconds() / period
	m.record(instant)
}

func (m *cpuMeter) record(instant float64) {
	avg := math.Float64frombits(m.average.Load())
	avg += m.alpha * (instant - avg)
	m.instant.Store(math.Float64bits(instant))
	m.average.Store(math.Float64bits(avg))
}

func (m *cpuMeter) Instant() float64 {
	return math.Float64frombits(m.instant.Load())
}

func (m *cpuMeter) Average() float64 {
	return math.Float64frombits(m.average.Load())
}
