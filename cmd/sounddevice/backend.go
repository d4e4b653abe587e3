// ABOUTME: Backend selection for the sounddevice tool
// ABOUTME: The fake backend gives a clocked duplex device for demos without hardware
package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/sounddevice/pkg/backend/fake"
	"github.com/Resonate-Protocol/sounddevice/pkg/backend/miniaudio"
	"github.com/Resonate-Protocol/sounddevice/pkg/backend/oto"
	"github.com/Resonate-Protocol/sounddevice/pkg/backend/portaudio"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// fakeDeviceID is the only device the fake backend offers
const fakeDeviceID device.ID = "fake"

// fakePeriod is the callback period of the fake clock: 480 frames at 48kHz
const fakePeriod = 10 * time.Millisecond

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openBackend returns the named backend, the device ID to use on it and a
// closer for the backend.
func openBackend(cfg *settings, log slog.Logger) (device.Backend, device.ID, io.Closer, error) {
	id := device.ID(cfg.Device)

	switch cfg.Backend {
	case "miniaudio":
		b, err := miniaudio.New(miniaudio.Config{Log: log, PollInterval: cfg.PollInterval})
		if err != nil {
			return nil, "", nil, err
		}
		return b, id, b, nil

	case "portaudio":
		b, err := portaudio.New(portaudio.Config{Log: log, PollInterval: cfg.PollInterval})
		if err != nil {
			return nil, "", nil, err
		}
		return b, id, b, nil

	case "oto":
		b, err := oto.New(oto.Config{Log: log})
		if err != nil {
			return nil, "", nil, err
		}
		if id == "" {
			id = oto.DefaultID
		}
		return b, id, b, nil

	case "fake":
		b := fake.New(fake.WithClock(fakePeriod))
		dev := fake.Speakers()
		dev.Name = "Fake Duplex"
		dev.Input = fake.Microphone().Input
		b.Add(fakeDeviceID, dev)
		// A quiet 220Hz hum so recordings are not silent.
		b.SetInputSignal(func(frame, ch int) float32 {
			return float32(0.1 * math.Sin(2*math.Pi*220*float64(frame)/48000))
		})
		if id == "" {
			id = fakeDeviceID
		}
		return b, id, nopCloser{}, nil
	}

	return nil, "", nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
