// ABOUTME: Deterministic in-memory backend for tests and demos
// ABOUTME: Callbacks run when pumped by hand or from an optional ticker clock
package fake

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/backend/notify"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// ErrNoDevice is returned for IDs that were never added
var ErrNoDevice = errors.New("no such fake device")

// Device describes one fake device
type Device struct {
	Present      bool
	Name         string
	Manufacturer string
	Rates        []int
	Input        device.StreamConfig
	Output       device.StreamConfig
}

// Speakers returns a present stereo output device
func Speakers() Device {
	return Device{
		Present:      true,
		Name:         "Speakers",
		Manufacturer: "Fake Audio",
		Rates:        []int{44100, 48000},
		Output:       device.StreamConfig{Channels: 2, SampleRate: 48000, SampleFormat: audio.SampleFormatF32, PeriodFrames: 480},
	}
}

// Microphone returns a present mono input device
func Microphone() Device {
	return Device{
		Present:      true,
		Name:         "Microphone",
		Manufacturer: "Fake Audio",
		Rates:        []int{16000, 44100, 48000},
		Input:        device.StreamConfig{Channels: 1, SampleRate: 48000, SampleFormat: audio.SampleFormatF32, PeriodFrames: 480},
	}
}

// Option configures a Backend
type Option func(*Backend)

// WithClock drives every open stream from a ticker with the given period
// instead of waiting for Pump.
func WithClock(period time.Duration) Option {
	return func(b *Backend) { b.clock = period }
}

// Backend implements device.Backend in memory
type Backend struct {
	hub   *notify.Hub
	clock time.Duration

	mu       sync.Mutex
	devices  map[device.ID]*Device
	openErr  map[device.ID]error
	queryErr map[device.ID]error
	closeErr map[device.ID]error
	streams  []*Stream
	opens    int
	signal   func(frame, ch int) float32
}

// New creates an empty fake backend
func New(opts ...Option) *Backend {
	b := &Backend{
		hub:      notify.NewHub(),
		devices:  make(map[device.ID]*Device),
		openErr:  make(map[device.ID]error),
		queryErr: make(map[device.ID]error),
		closeErr: make(map[device.ID]error),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements device.Backend
func (b *Backend) Name() string { return "fake" }

// Add registers or replaces a device
func (b *Backend) Add(id device.ID, dev Device) {
	dev.Rates = slices.Clone(dev.Rates)
	b.mu.Lock()
	b.devices[id] = &dev
	b.mu.Unlock()
}

// Update mutates a device and then publishes kinds to its subscribers
func (b *Backend) Update(id device.ID, fn func(*Device), kinds ...device.ChangeKind) {
	b.mu.Lock()
	if dev, ok := b.devices[id]; ok {
		fn(dev)
	}
	b.mu.Unlock()

	for _, kind := range kinds {
		b.hub.Publish(id, kind)
	}
}

// SetOpenError makes Open fail for id. A nil err clears it.
func (b *Backend) SetOpenError(id device.ID, err error) {
	b.setErr(b.openErr, id, err)
}

// SetQueryError makes every query for id fail. A nil err clears it.
func (b *Backend) SetQueryError(id device.ID, err error) {
	b.setErr(b.queryErr, id, err)
}

// SetCloseError makes closing streams of id fail. A nil err clears it.
func (b *Backend) SetCloseError(id device.ID, err error) {
	b.setErr(b.closeErr, id, err)
}

func (b *Backend) setErr(m map[device.ID]error, id device.ID, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(m, id)
		return
	}
	m[id] = err
}

// SetInputSignal sets the generator for captured samples. The default is
// silence.
func (b *Backend) SetInputSignal(fn func(frame, ch int) float32) {
	b.mu.Lock()
	b.signal = fn
	b.mu.Unlock()
}

// Fire publishes a change notification for id
func (b *Backend) Fire(id device.ID, kind device.ChangeKind) int {
	return b.hub.Publish(id, kind)
}

// Subscribers returns the number of subscriptions on id
func (b *Backend) Subscribers(id device.ID) int {
	return b.hub.Count(id)
}

// Opens returns how many streams were opened successfully
func (b *Backend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// Streams returns the open streams of id
func (b *Backend) Streams(id device.ID) []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*Stream
	for _, s := range b.streams {
		if s.id == id {
			out = append(out, s)
		}
	}
	return out
}

// Pump runs one callback of frames frames on every open stream of id and
// returns how many streams ran.
func (b *Backend) Pump(id device.ID, frames int) int {
	n := 0
	for _, s := range b.Streams(id) {
		if s.Pump(frames) {
			n++
		}
	}
	return n
}

// Halt stops the open streams of id as if the hardware went away and
// publishes ChangeStopped.
func (b *Backend) Halt(id device.ID) {
	for _, s := range b.Streams(id) {
		s.halt()
	}
	b.hub.Publish(id, device.ChangeStopped)
}

func (b *Backend) lookup(id device.ID) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.queryErr[id]; err != nil {
		return Device{}, err
	}
	dev, ok := b.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrNoDevice, id)
	}
	return *dev, nil
}

// QueryStatus implements device.Backend
func (b *Backend) QueryStatus(id device.ID) (bool, error) {
	dev, err := b.lookup(id)
	if errors.Is(err, ErrNoDevice) {
		return false, nil
	}
	return dev.Present, err
}

// QueryName implements device.Backend
func (b *Backend) QueryName(id device.ID) (string, error) {
	dev, err := b.lookup(id)
	return dev.Name, err
}

// QueryManufacturer implements device.Backend
func (b *Backend) QueryManufacturer(id device.ID) (string, error) {
	dev, err := b.lookup(id)
	return dev.Manufacturer, err
}

// QueryNativeSampleRates implements device.Backend
func (b *Backend) QueryNativeSampleRates(id device.ID) ([]int, error) {
	dev, err := b.lookup(id)
	return slices.Clone(dev.Rates), err
}

// QueryStreamConfig implements device.Backend
func (b *Backend) QueryStreamConfig(id device.ID, dir device.Direction) (device.StreamConfig, error) {
	dev, err := b.lookup(id)
	if err != nil {
		return device.StreamConfig{}, err
	}
	if dir == device.DirectionInput {
		return dev.Input, nil
	}
	return dev.Output, nil
}

// Subscribe implements device.Backend
func (b *Backend) Subscribe(id device.ID, onChange func(device.ChangeKind)) (device.Subscription, error) {
	return b.hub.Subscribe(id, onChange), nil
}

// Open implements device.Backend
func (b *Backend) Open(id device.ID, req device.StreamRequest, proc device.DataProc) (device.Stream, error) {
	b.mu.Lock()
	dev, ok := b.devices[id]
	switch {
	case !ok:
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, id)
	case !dev.Present:
		b.mu.Unlock()
		return nil, fmt.Errorf("fake device %s is not present", id)
	case b.openErr[id] != nil:
		err := b.openErr[id]
		b.mu.Unlock()
		return nil, err
	}

	s := &Stream{
		backend: b,
		id:      id,
		req:     req,
		proc:    proc,
		signal:  b.signal,
		quit:    make(chan struct{}),
	}
	b.streams = append(b.streams, s)
	b.opens++
	b.mu.Unlock()

	if b.clock > 0 {
		s.wg.Add(1)
		go s.run(b.clock)
	}
	return s, nil
}

func (b *Backend) remove(s *Stream) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.streams = slices.DeleteFunc(b.streams, func(o *Stream) bool { return o == s })
	return b.closeErr[s.id]
}
