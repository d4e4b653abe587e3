//go:build portaudio

// ABOUTME: PortAudio backend built on gordonklaus/portaudio
// ABOUTME: Device IDs are PortAudio device names; the host API is the manufacturer
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/decred/slog"
	pa "github.com/gordonklaus/portaudio"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/backend/notify"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// Backend implements device.Backend on PortAudio
type Backend struct {
	log    slog.Logger
	hub    *notify.Hub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New initializes PortAudio and starts the change poller
func New(cfg Config) (*Backend, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	b := &Backend{
		log: cfg.logger(),
		hub: notify.NewHub(),
	}
	poller := notify.NewPoller(b.hub, cfg.PollInterval, b.snapshot, b.log)

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		_ = poller.Run(ctx)
	}()

	return b, nil
}

// Close stops the poller and terminates PortAudio
func (b *Backend) Close() error {
	b.cancel()
	b.wg.Wait()
	return pa.Terminate()
}

// Name implements device.Backend
func (b *Backend) Name() string { return "portaudio" }

// lookup returns the device named id, or the default output device (falling
// back to the default input) for the empty ID. A missing device is nil.
func (b *Backend) lookup(id device.ID) (*pa.DeviceInfo, error) {
	if id == "" {
		if dev, err := pa.DefaultOutputDevice(); err == nil {
			return dev, nil
		}
		dev, err := pa.DefaultInputDevice()
		if err != nil {
			return nil, nil
		}
		return dev, nil
	}

	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == string(id) {
			return dev, nil
		}
	}
	return nil, nil
}

func (b *Backend) mustLookup(id device.ID) (*pa.DeviceInfo, error) {
	dev, err := b.lookup(id)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, fmt.Errorf("device %s not found", id)
	}
	return dev, nil
}

// QueryStatus implements device.Backend
func (b *Backend) QueryStatus(id device.ID) (bool, error) {
	dev, err := b.lookup(id)
	return dev != nil, err
}

// QueryName implements device.Backend
func (b *Backend) QueryName(id device.ID) (string, error) {
	dev, err := b.mustLookup(id)
	if err != nil {
		return "", err
	}
	return dev.Name, nil
}

// QueryManufacturer implements device.Backend
func (b *Backend) QueryManufacturer(id device.ID) (string, error) {
	dev, err := b.mustLookup(id)
	if err != nil {
		return "", err
	}
	if dev.HostApi == nil {
		return "", nil
	}
	return dev.HostApi.Name, nil
}

// QueryNativeSampleRates implements device.Backend by probing the standard
// rates.
func (b *Backend) QueryNativeSampleRates(id device.ID) ([]int, error) {
	dev, err := b.mustLookup(id)
	if err != nil {
		return nil, err
	}
	return probeRates(dev), nil
}

func probeRates(dev *pa.DeviceInfo) []int {
	var rates []int
	for _, rate := range standardRates {
		p := pa.StreamParameters{SampleRate: float64(rate)}
		if dev.MaxOutputChannels > 0 {
			p.Output = pa.StreamDeviceParameters{Device: dev, Channels: min(dev.MaxOutputChannels, 2)}
		} else {
			p.Input = pa.StreamDeviceParameters{Device: dev, Channels: min(dev.MaxInputChannels, 2)}
		}
		if pa.IsFormatSupported(p, []float32{}) == nil {
			rates = append(rates, rate)
		}
	}
	if len(rates) == 0 && dev.DefaultSampleRate > 0 {
		rates = append(rates, int(dev.DefaultSampleRate))
	}
	return rates
}

func streamConfig(dev *pa.DeviceInfo, dir device.Direction) device.StreamConfig {
	channels := dev.MaxOutputChannels
	latency := dev.DefaultLowOutputLatency
	if dir == device.DirectionInput {
		channels = dev.MaxInputChannels
		latency = dev.DefaultLowInputLatency
	}
	if channels == 0 {
		return device.StreamConfig{}
	}
	return device.StreamConfig{
		Channels:     channels,
		SampleRate:   int(dev.DefaultSampleRate),
		SampleFormat: audio.SampleFormatF32,
		PeriodFrames: int(latency.Seconds() * dev.DefaultSampleRate),
	}
}

// QueryStreamConfig implements device.Backend
func (b *Backend) QueryStreamConfig(id device.ID, dir device.Direction) (device.StreamConfig, error) {
	dev, err := b.mustLookup(id)
	if err != nil {
		return device.StreamConfig{}, err
	}
	return streamConfig(dev, dir), nil
}

// Subscribe implements device.Backend
func (b *Backend) Subscribe(id device.ID, onChange func(device.ChangeKind)) (device.Subscription, error) {
	return b.hub.Subscribe(id, onChange), nil
}

func (b *Backend) snapshot(id device.ID) (notify.Snapshot, error) {
	dev, err := b.lookup(id)
	if err != nil || dev == nil {
		return notify.Snapshot{}, err
	}
	var manufacturer string
	if dev.HostApi != nil {
		manufacturer = dev.HostApi.Name
	}
	return notify.Snapshot{
		Present:      true,
		Name:         dev.Name,
		Manufacturer: manufacturer,
		Rates:        device.NewSampleRates(int(dev.DefaultSampleRate)),
		Input:        streamConfig(dev, device.DirectionInput),
		Output:       streamConfig(dev, device.DirectionOutput),
	}, nil
}

// Open implements device.Backend
func (b *Backend) Open(id device.ID, req device.StreamRequest, proc device.DataProc) (device.Stream, error) {
	dev, err := b.mustLookup(id)
	if err != nil {
		return nil, err
	}

	p := pa.StreamParameters{
		SampleRate:      float64(req.SampleRate),
		FramesPerBuffer: req.PeriodFrames,
	}
	if req.InputChannels > 0 {
		p.Input = pa.StreamDeviceParameters{
			Device:   dev,
			Channels: req.InputChannels,
			Latency:  dev.DefaultLowInputLatency,
		}
	}
	if req.OutputChannels > 0 {
		p.Output = pa.StreamDeviceParameters{
			Device:   dev,
			Channels: req.OutputChannels,
			Latency:  dev.DefaultLowOutputLatency,
		}
	}

	s := &stream{proc: proc, inCh: req.InputChannels, outCh: req.OutputChannels}

	// The callback signature tells PortAudio which buffers to pass.
	var callback interface{}
	switch {
	case s.inCh > 0 && s.outCh > 0:
		callback = s.duplex
	case s.outCh > 0:
		callback = s.playback
	case s.inCh > 0:
		callback = s.capture
	default:
		return nil, errors.New("stream request has no channels")
	}

	st, err := pa.OpenStream(p, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if err := st.Start(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}
	s.st = st

	b.log.Debugf("Opened PortAudio stream on %q (%s)", dev.Name, req)
	return s, nil
}

type stream struct {
	st     *pa.Stream
	proc   device.DataProc
	inCh   int
	outCh  int
	closed atomic.Bool
}

func (s *stream) duplex(in, out []float32) {
	s.proc(out, in, len(out)/s.outCh)
}

func (s *stream) playback(out []float32) {
	s.proc(out, nil, len(out)/s.outCh)
}

func (s *stream) capture(in []float32) {
	s.proc(nil, in, len(in)/s.inCh)
}

// Close stops the stream. Pa_StopStream returns after the last callback.
func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	stopErr := s.st.Stop()
	closeErr := s.st.Close()
	return errors.Join(stopErr, closeErr)
}
