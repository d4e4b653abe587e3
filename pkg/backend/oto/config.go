// ABOUTME: Configuration and build independent parts of the oto backend
// ABOUTME: oto exposes one default output device per process
package oto

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

var (
	// ErrUnavailable is returned by New in builds without audio support
	ErrUnavailable = errors.New("oto backend not available in this build")

	// ErrFormatLocked is returned when a stream asks for a different format
	// than the process wide oto context was created with.
	ErrFormatLocked = errors.New("oto context already created with another format")

	// ErrOutputOnly is returned for streams with input channels
	ErrOutputOnly = errors.New("oto backend supports output only")
)

// DefaultID is the only device the backend knows
const DefaultID device.ID = "default"

// Config configures the backend
type Config struct {
	Log slog.Logger

	// BufferSize is the player buffer duration. Zero lets oto pick.
	BufferSize time.Duration
}

func (c Config) logger() slog.Logger {
	if c.Log == nil {
		return slog.Disabled
	}
	return c.Log
}

// nativeRates are the rates oto resamples nothing for on common hardware
var nativeRates = []int{44100, 48000}

// defaultConfig is reported until the context exists
var defaultConfig = device.StreamConfig{
	Channels:     2,
	SampleRate:   48000,
	SampleFormat: audio.SampleFormatF32,
}

func isDefault(id device.ID) bool {
	return id == "" || id == DefaultID
}

// pullReader turns a DataProc into the io.Reader an oto player drains.
// Each Read runs one callback sized to the request.
type pullReader struct {
	proc     device.DataProc
	channels int

	// mu is held for the whole callback so close can wait it out.
	mu     sync.Mutex
	closed bool
	buf    []float32
}

func newPullReader(proc device.DataProc, channels int) *pullReader {
	return &pullReader{proc: proc, channels: channels}
}

// Read implements io.Reader. It returns io.EOF once closed.
func (r *pullReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.EOF
	}

	frameBytes := r.channels * audio.SampleFormatF32.BytesPerSample()
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	n := frames * r.channels
	if cap(r.buf) < n {
		r.buf = make([]float32, n)
	}
	r.buf = r.buf[:n]
	audio.Silence(r.buf)

	r.proc(r.buf, nil, frames)
	audio.EncodeSamples(audio.SampleFormatF32, r.buf, p)
	return frames * frameBytes, nil
}

// close waits for any in-flight callback and stops further ones
func (r *pullReader) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
