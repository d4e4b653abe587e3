// ABOUTME: Point in time view of a device for metrics, status feeds and the TUI
// ABOUTME: Snapshots are plain values safe to marshal and compare
package metrics

import (
	"time"

	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// Snapshot is a device's observable state
type Snapshot struct {
	Time         time.Time `json:"time"`
	ID           string    `json:"id"`
	Backend      string    `json:"backend"`
	Name         string    `json:"name"`
	Manufacturer string    `json:"manufacturer"`
	State        string    `json:"state"`
	Valid        bool      `json:"valid"`
	Running      bool      `json:"running"`
	SampleRates  []int     `json:"sampleRates"`
	Input        Stream    `json:"input"`
	Output       Stream    `json:"output"`
	CPU          float64   `json:"cpu"`
	AverageCPU   float64   `json:"averageCpu"`

	Callbacks      uint64 `json:"callbacks"`
	Fallbacks      uint64 `json:"fallbacks"`
	DelegateErrors uint64 `json:"delegateErrors"`
	GuardMisses    uint64 `json:"guardMisses"`
}

// Stream is one direction of a Snapshot
type Stream struct {
	Channels     int    `json:"channels"`
	SampleRate   int    `json:"sampleRate"`
	SampleFormat string `json:"sampleFormat"`
	PeriodFrames int    `json:"periodFrames"`
}

func stream(c device.StreamConfig) Stream {
	if c.Channels == 0 {
		return Stream{}
	}
	return Stream{
		Channels:     c.Channels,
		SampleRate:   c.SampleRate,
		SampleFormat: c.SampleFormat.String(),
		PeriodFrames: c.PeriodFrames,
	}
}

// Take reads d's current state. It never blocks on the audio path.
func Take(d *device.Device) Snapshot {
	stats := d.Stats()
	var backend string
	if b := d.Backend(); b != nil {
		backend = b.Name()
	}
	return Snapshot{
		Time:           time.Now(),
		ID:             d.ID().String(),
		Backend:        backend,
		Name:           d.Name(),
		Manufacturer:   d.Manufacturer(),
		State:          d.State().String(),
		Valid:          d.IsValid(),
		Running:        d.IsRunning(),
		SampleRates:    []int(d.NativeSampleRates()),
		Input:          stream(d.InputStreamConfig()),
		Output:         stream(d.OutputStreamConfig()),
		CPU:            d.CPUUsage(),
		AverageCPU:     d.AverageCPUUsage(),
		Callbacks:      stats.Callbacks,
		Fallbacks:      stats.Fallbacks,
		DelegateErrors: stats.DelegateErrors,
		GuardMisses:    stats.GuardMisses,
	}
}
