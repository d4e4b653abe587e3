//go:build !cgo || noaudio

// ABOUTME: oto backend stub for builds without audio support
// ABOUTME: New always fails so callers can fall back to another backend
package oto

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
