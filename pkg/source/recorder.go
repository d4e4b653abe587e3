// ABOUTME: Recorder delegate writing captured audio to a WAV file
// ABOUTME: The audio thread fills a ring that a worker drains to disk
package source

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/encode"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// drainInterval is how often Run moves captured audio to the writer
const drainInterval = 20 * time.Millisecond

// Recorder captures input into a WAVWriter. Run must be running to drain it.
type Recorder struct {
	cfg    Config
	log    slog.Logger
	w      *encode.WAVWriter
	format audio.Format
	ring   *Ring

	dropped atomic.Uint64
	peak    atomic.Uint32 // float32 bits

	// Owned by the audio thread.
	silence []float32
}

// NewRecorder records into w. The device should be configured with
// device.WithDelegateFormat(r.Format()).
func NewRecorder(w *encode.WAVWriter, cfg Config) *Recorder {
	format := w.Format()
	return &Recorder{
		cfg:    cfg,
		log:    cfg.logger(),
		w:      w,
		format: format,
		ring:   NewRing(cfg.ringSamples(format)),
	}
}

// Format returns the format PushSamples expects
func (r *Recorder) Format() audio.Format { return r.format }

// Dropped returns how many samples were lost because the ring was full or
// arrived in the wrong format.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Peak returns the absolute peak of the most recent block
func (r *Recorder) Peak() float32 { return math.Float32frombits(r.peak.Load()) }

// Frames returns how many frames reached the writer
func (r *Recorder) Frames() int64 { return r.w.Frames() }

// Run drains the ring into the writer until ctx is done, then flushes what
// is left. Cancellation is a normal stop and returns nil.
func (r *Recorder) Run(ctx context.Context) error {
	buf := make([]float32, len(r.ring.buffer))
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := r.drain(buf); err != nil {
				return err
			}
			r.log.Debugf("Recorded %d frames (%d samples dropped)", r.w.Frames(), r.dropped.Load())
			return nil
		case <-ticker.C:
			if err := r.drain(buf); err != nil {
				return err
			}
		}
	}
}

func (r *Recorder) drain(buf []float32) error {
	avail := r.ring.Available()
	if avail == 0 {
		return nil
	}
	n := r.ring.Read(buf[:avail])
	return r.w.Write(buf[:n])
}

// PullSamples implements device.Delegate. It answers with silence so a
// duplex device plays nothing back.
func (r *Recorder) PullSamples(frames int, format audio.Format) (audio.SampleBuffer, error) {
	n := frames * format.Channels
	if cap(r.silence) < n {
		r.silence = make([]float32, n)
	}
	r.silence = r.silence[:n]
	audio.Silence(r.silence)
	return audio.SampleBuffer{Format: format, Samples: r.silence}, nil
}

// PushSamples implements device.Delegate
func (r *Recorder) PushSamples(buf audio.SampleBuffer) {
	if buf.Format.Channels != r.format.Channels || buf.Format.SampleRate != r.format.SampleRate {
		r.dropped.Add(uint64(len(buf.Samples)))
		return
	}

	var peak float32
	for _, s := range buf.Samples {
		peak = max(peak, abs32(s))
	}
	r.peak.Store(math.Float32bits(peak))

	n, _ := r.ring.TryWrite(buf.Samples)
	if n < len(buf.Samples) {
		r.dropped.Add(uint64(len(buf.Samples) - n))
	}
}

// StatusChanged implements device.Delegate
func (r *Recorder) StatusChanged(kind device.ChangeKind) {
	if r.cfg.OnStatus != nil {
		r.cfg.OnStatus(kind)
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
