//go:build cgo && !noaudio

// ABOUTME: miniaudio backend built on gen2brain/malgo
// ABOUTME: Opens float32 duplex/playback/capture streams and polls for device changes
package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/decred/slog"
	"github.com/gen2brain/malgo"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/backend/notify"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// Backend implements device.Backend on miniaudio
type Backend struct {
	log    slog.Logger
	hub    *notify.Hub
	poller *notify.Poller
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu serializes calls into the miniaudio context.
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// New initializes a miniaudio context and starts the change poller
func New(cfg Config) (*Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	b := &Backend{
		log: cfg.logger(),
		hub: notify.NewHub(),
		ctx: ctx,
	}
	b.poller = notify.NewPoller(b.hub, cfg.PollInterval, b.snapshot, b.log)

	pollCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		_ = b.poller.Run(pollCtx)
	}()

	return b, nil
}

// Close stops the poller and frees the miniaudio context. Streams must be
// closed first.
func (b *Backend) Close() error {
	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	return err
}

// Name implements device.Backend
func (b *Backend) Name() string { return "miniaudio" }

// entry is what miniaudio knows about one device ID
type entry struct {
	playback *malgo.DeviceInfo
	capture  *malgo.DeviceInfo
}

func (e entry) present() bool { return e.playback != nil || e.capture != nil }

func (e entry) name() string {
	if e.playback != nil {
		return e.playback.Name()
	}
	if e.capture != nil {
		return e.capture.Name()
	}
	return ""
}

// lookup finds id among playback and capture devices. The empty ID matches
// the default device of each direction.
func (b *Backend) lookup(id device.ID) (entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return entry{}, errors.New("miniaudio backend closed")
	}

	var e entry
	for _, typ := range []malgo.DeviceType{malgo.Playback, malgo.Capture} {
		devices, err := b.ctx.Devices(typ)
		if err != nil {
			return entry{}, err
		}
		for _, dev := range devices {
			match := encodeID(dev.ID[:]) == id
			if id == "" {
				match = dev.IsDefault == 1
			}
			if !match {
				continue
			}

			full, err := b.ctx.DeviceInfo(typ, dev.ID, malgo.Shared)
			if err != nil {
				b.log.Warnf("Unable to get audio device info: %v", err)
				full = dev
			}
			if typ == malgo.Playback {
				e.playback = &full
			} else {
				e.capture = &full
			}
			break
		}
	}
	return e, nil
}

func sampleFormat(f malgo.FormatType) audio.SampleFormat {
	switch f {
	case malgo.FormatS16:
		return audio.SampleFormatS16
	case malgo.FormatS24:
		return audio.SampleFormatS24
	case malgo.FormatS32:
		return audio.SampleFormatS32
	case malgo.FormatF32:
		return audio.SampleFormatF32
	default:
		return audio.SampleFormatUnknown
	}
}

func nativeRates(info *malgo.DeviceInfo) []int {
	var rates []int
	for i := 0; i < int(info.FormatCount) && i < len(info.Formats); i++ {
		if r := int(info.Formats[i].SampleRate); r > 0 {
			rates = append(rates, r)
		}
	}
	return rates
}

// streamConfig summarizes the native formats of one direction. miniaudio
// reports zero for "any", which maps to stereo at the highest fallback rate.
func streamConfig(info *malgo.DeviceInfo) device.StreamConfig {
	if info == nil {
		return device.StreamConfig{}
	}

	cfg := device.StreamConfig{SampleFormat: audio.SampleFormatF32}
	for i := 0; i < int(info.FormatCount) && i < len(info.Formats); i++ {
		f := info.Formats[i]
		if ch := int(f.Channels); ch > cfg.Channels {
			cfg.Channels = ch
		}
		if r := int(f.SampleRate); r > cfg.SampleRate {
			cfg.SampleRate = r
		}
		if i == 0 {
			cfg.SampleFormat = sampleFormat(f.Format)
		}
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = slices.Max(fallbackRates)
	}
	return cfg
}

// QueryStatus implements device.Backend
func (b *Backend) QueryStatus(id device.ID) (bool, error) {
	e, err := b.lookup(id)
	return e.present(), err
}

// QueryName implements device.Backend
func (b *Backend) QueryName(id device.ID) (string, error) {
	e, err := b.lookup(id)
	if err != nil {
		return "", err
	}
	if !e.present() {
		return "", fmt.Errorf("device %s not found", id)
	}
	return e.name(), nil
}

// QueryManufacturer implements device.Backend. miniaudio does not expose a
// vendor, so the backend name is reported.
func (b *Backend) QueryManufacturer(id device.ID) (string, error) {
	e, err := b.lookup(id)
	if err != nil {
		return "", err
	}
	if !e.present() {
		return "", fmt.Errorf("device %s not found", id)
	}
	return b.Name(), nil
}

// QueryNativeSampleRates implements device.Backend
func (b *Backend) QueryNativeSampleRates(id device.ID) ([]int, error) {
	e, err := b.lookup(id)
	if err != nil {
		return nil, err
	}
	var rates []int
	for _, info := range []*malgo.DeviceInfo{e.playback, e.capture} {
		if info != nil {
			rates = append(rates, nativeRates(info)...)
		}
	}
	if len(rates) == 0 && e.present() {
		rates = slices.Clone(fallbackRates)
	}
	return rates, nil
}

// QueryStreamConfig implements device.Backend
func (b *Backend) QueryStreamConfig(id device.ID, dir device.Direction) (device.StreamConfig, error) {
	e, err := b.lookup(id)
	if err != nil {
		return device.StreamConfig{}, err
	}
	if dir == device.DirectionInput {
		return streamConfig(e.capture), nil
	}
	return streamConfig(e.playback), nil
}

// Subscribe implements device.Backend
func (b *Backend) Subscribe(id device.ID, onChange func(device.ChangeKind)) (device.Subscription, error) {
	return b.hub.Subscribe(id, onChange), nil
}

func (b *Backend) snapshot(id device.ID) (notify.Snapshot, error) {
	e, err := b.lookup(id)
	if err != nil {
		return notify.Snapshot{}, err
	}
	var rates []int
	for _, info := range []*malgo.DeviceInfo{e.playback, e.capture} {
		if info != nil {
			rates = append(rates, nativeRates(info)...)
		}
	}
	return notify.Snapshot{
		Present:      e.present(),
		Name:         e.name(),
		Manufacturer: b.Name(),
		Rates:        device.NewSampleRates(rates...),
		Input:        streamConfig(e.capture),
		Output:       streamConfig(e.playback),
	}, nil
}

// Open implements device.Backend
func (b *Backend) Open(id device.ID, req device.StreamRequest, proc device.DataProc) (device.Stream, error) {
	var (
		typ     malgo.DeviceType
		rawID   malgo.DeviceID
		useID   bool
		outCh   = req.OutputChannels
		inCh    = req.InputChannels
		decoded []byte
	)
	switch {
	case inCh > 0 && outCh > 0:
		typ = malgo.Duplex
	case outCh > 0:
		typ = malgo.Playback
	case inCh > 0:
		typ = malgo.Capture
	default:
		return nil, errors.New("stream request has no channels")
	}

	if id != "" {
		var err error
		if decoded, err = decodeID(id); err != nil {
			return nil, err
		}
		copy(rawID[:], decoded)
		useID = true
	}

	cfg := malgo.DefaultDeviceConfig(typ)
	cfg.SampleRate = uint32(req.SampleRate)
	cfg.PeriodSizeInFrames = uint32(req.PeriodFrames)
	cfg.Alsa.NoMMap = 1
	if outCh > 0 {
		cfg.Playback.Format = malgo.FormatF32
		cfg.Playback.Channels = uint32(outCh)
		if useID {
			cfg.Playback.DeviceID = rawID.Pointer()
		}
	}
	if inCh > 0 {
		cfg.Capture.Format = malgo.FormatF32
		cfg.Capture.Channels = uint32(inCh)
		if useID {
			cfg.Capture.DeviceID = rawID.Pointer()
		}
	}

	s := &stream{
		backend: b,
		id:      id,
		proc:    proc,
		outCh:   outCh,
		inCh:    inCh,
	}

	callbacks := malgo.DeviceCallbacks{
		Data: s.data,
		Stop: s.stopped,
	}

	b.mu.Lock()
	if b.ctx == nil {
		b.mu.Unlock()
		return nil, errors.New("miniaudio backend closed")
	}
	dev, err := malgo.InitDevice(b.ctx.Context, cfg, callbacks)
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s device: %w", id, err)
	}

	s.dev = dev
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("failed to start %s device: %w", id, err)
	}

	b.log.Debugf("Opened stream type %v on %s (%s)", typ, id, req)
	return s, nil
}

// stream adapts the byte oriented malgo callback to a device.DataProc
type stream struct {
	backend *Backend
	id      device.ID
	dev     *malgo.Device
	proc    device.DataProc
	outCh   int
	inCh    int
	closing atomic.Bool
	halted  atomic.Bool

	// Owned by the audio thread.
	out []float32
	in  []float32
}

func (s *stream) data(out, in []byte, frames uint32) {
	n := int(frames)
	s.out = grow(s.out, n*s.outCh)
	s.in = grow(s.in, n*s.inCh)

	if s.inCh > 0 {
		audio.DecodeSamples(audio.SampleFormatF32, in, s.in)
	}
	s.proc(s.out, s.in, n)
	if s.outCh > 0 {
		audio.EncodeSamples(audio.SampleFormatF32, s.out, out)
	}
}

// stopped runs when miniaudio stops the device, including on our own Close.
func (s *stream) stopped() {
	if s.closing.Load() {
		return
	}
	s.halted.Store(true)
	// Publishing reaches back into the device; keep it off the audio thread.
	go s.backend.hub.Publish(s.id, device.ChangeStopped)
}

// Stopped implements device.StopReporter
func (s *stream) Stopped() bool { return s.halted.Load() || s.closing.Load() }

// Close stops the device. ma_device_stop waits for the data callback to
// return, so no callback runs once Close returns.
func (s *stream) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	err := s.dev.Stop()
	s.dev.Uninit()
	return err
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
