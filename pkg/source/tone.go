// ABOUTME: Sine tone delegate
// ABOUTME: Frequency and gain can change while the device runs
package source

import (
	"math"
	"sync/atomic"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// Tone generates a sine wave on every channel
type Tone struct {
	freq atomic.Uint64 // float64 bits
	gain atomic.Uint64 // float64 bits

	// Owned by the audio thread.
	phase float64
	buf   []float32
}

// NewTone creates a tone at freq Hz scaled by gain
func NewTone(freq, gain float64) *Tone {
	t := &Tone{}
	t.SetFrequency(freq)
	t.SetGain(gain)
	return t
}

// SetFrequency changes the pitch
func (t *Tone) SetFrequency(freq float64) { t.freq.Store(math.Float64bits(freq)) }

// Frequency returns the pitch in Hz
func (t *Tone) Frequency() float64 { return math.Float64frombits(t.freq.Load()) }

// SetGain changes the amplitude, clamped to [0, 1]
func (t *Tone) SetGain(gain float64) {
	t.gain.Store(math.Float64bits(max(0, min(1, gain))))
}

// Gain returns the amplitude
func (t *Tone) Gain() float64 { return math.Float64frombits(t.gain.Load()) }

// PullSamples implements device.Delegate
func (t *Tone) PullSamples(frames int, format audio.Format) (audio.SampleBuffer, error) {
	n := frames * format.Channels
	if cap(t.buf) < n {
		t.buf = make([]float32, n)
	}
	t.buf = t.buf[:n]

	step := 2 * math.Pi * t.Frequency() / float64(format.SampleRate)
	gain := t.Gain()
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(t.phase) * gain)
		for ch := 0; ch < format.Channels; ch++ {
			t.buf[i*format.Channels+ch] = v
		}
		t.phase += step
	}
	// Keep the phase small so precision does not degrade over long runs.
	t.phase = math.Mod(t.phase, 2*math.Pi)

	return audio.SampleBuffer{Format: format, Samples: t.buf}, nil
}

// PushSamples implements device.Delegate
func (t *Tone) PushSamples(audio.SampleBuffer) {}

// StatusChanged implements device.Delegate
func (t *Tone) StatusChanged(device.ChangeKind) {}
