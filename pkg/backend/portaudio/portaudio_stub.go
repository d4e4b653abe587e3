//go:build !portaudio

// ABOUTME: PortAudio stub when the library is not available
// ABOUTME: New always fails so callers can fall back to another backend
package portaudio

import "github.com/Resonate-Protocol/sounddevice/pkg/device"

// Backend is unavailable in this build
type Backend struct {
	device.Backend
}

// New returns ErrUnavailable
func New(cfg Config) (*Backend, error) {
	return nil, ErrUnavailable
}

// Close is a no-op
func (b *Backend) Close() error { return nil }
