// ABOUTME: File player delegate fed by a decoding goroutine
// ABOUTME: The audio thread only reads the ring; underruns play silence
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/decode"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// DefaultBuffer is the ring capacity used when Config.Buffer is zero
const DefaultBuffer = 500 * time.Millisecond

// ErrFormatMismatch is returned to the device when it asks for audio in a
// format other than the delegate's own.
var ErrFormatMismatch = errors.New("delegate format mismatch")

// Config configures a Player or Recorder
type Config struct {
	Log slog.Logger

	// Buffer is the ring capacity as a duration of audio
	Buffer time.Duration

	// OnStatus receives device change notifications
	OnStatus func(device.ChangeKind)
}

func (c Config) logger() slog.Logger {
	if c.Log == nil {
		return slog.Disabled
	}
	return c.Log
}

func (c Config) ringSamples(format audio.Format) int {
	buffer := c.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	frames := int(buffer.Seconds() * float64(format.SampleRate))
	return max(frames, 1) * format.Channels
}

// Player plays a decode.Source. Run must be running for audio to flow.
type Player struct {
	cfg    Config
	log    slog.Logger
	src    decode.Source
	format audio.Format
	ring   *Ring

	eof       atomic.Bool
	frames    atomic.Uint64
	underruns atomic.Uint64

	// Owned by the audio thread.
	buf []float32
}

// NewPlayer creates a player for src. The device should be configured with
// device.WithDelegateFormat(p.Format()).
func NewPlayer(src decode.Source, cfg Config) *Player {
	format := src.Format()
	format.SampleFormat = audio.SampleFormatF32
	return &Player{
		cfg:    cfg,
		log:    cfg.logger(),
		src:    src,
		format: format,
		ring:   NewRing(cfg.ringSamples(format)),
	}
}

// Format returns the format PullSamples produces
func (p *Player) Format() audio.Format { return p.format }

// Frames returns how many frames have been played
func (p *Player) Frames() uint64 { return p.frames.Load() }

// Underruns returns how many pulls could not be served in full before the
// source ended.
func (p *Player) Underruns() uint64 { return p.underruns.Load() }

// Finished reports whether the source ended and the ring drained
func (p *Player) Finished() bool {
	return p.eof.Load() && p.ring.Available() == 0
}

// Run decodes into the ring until the source ends and the ring drains, or
// ctx is done.
func (p *Player) Run(ctx context.Context) error {
	ch := p.format.Channels
	chunk := make([]float32, p.ring.Free()/2/ch*ch)
	if len(chunk) == 0 {
		chunk = make([]float32, ch)
	}

	// Wake often enough to refill a quarter of the ring.
	interval := time.Duration(float64(len(chunk)/ch) / float64(p.format.SampleRate) * float64(time.Second) / 2)
	ticker := time.NewTicker(max(interval, time.Millisecond))
	defer ticker.Stop()

	for {
		if !p.eof.Load() {
			if err := p.fill(chunk); err != nil {
				return err
			}
		} else if p.ring.Available() == 0 {
			p.log.Debugf("Playback finished after %d frames", p.frames.Load())
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// fill tops up the ring from the source
func (p *Player) fill(chunk []float32) error {
	ch := p.format.Channels
	for {
		room := p.ring.Free() / ch * ch
		if room == 0 {
			return nil
		}
		n, err := p.src.Read(chunk[:min(room, len(chunk))])
		p.ring.Write(chunk[:n])
		if errors.Is(err, io.EOF) {
			p.eof.Store(true)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// PullSamples implements device.Delegate
func (p *Player) PullSamples(frames int, format audio.Format) (audio.SampleBuffer, error) {
	if format.Channels != p.format.Channels || format.SampleRate != p.format.SampleRate {
		return audio.SampleBuffer{}, fmt.Errorf("%w: got %s, want %s", ErrFormatMismatch, format, p.format)
	}

	n := frames * format.Channels
	if cap(p.buf) < n {
		p.buf = make([]float32, n)
	}
	p.buf = p.buf[:n]

	got, ok := p.ring.TryRead(p.buf)
	if (!ok || got < n) && !p.eof.Load() {
		p.underruns.Add(1)
	}
	p.frames.Add(uint64(got / format.Channels))
	return audio.SampleBuffer{Format: format, Samples: p.buf}, nil
}

// PushSamples implements device.Delegate
func (p *Player) PushSamples(audio.SampleBuffer) {}

// StatusChanged implements device.Delegate
func (p *Player) StatusChanged(kind device.ChangeKind) {
	if p.cfg.OnStatus != nil {
		p.cfg.OnStatus(kind)
	}
}

// Close closes the source
func (p *Player) Close() error { return p.src.Close() }
