//go:build cgo && !noaudio

// ABOUTME: Output only backend built on ebitengine/oto
// ABOUTME: The oto context is created on first Open and shared by later streams
package oto

import (
	"fmt"
	"slices"
	"sync"

	"github.com/decred/slog"
	otov3 "github.com/ebitengine/oto/v3"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/backend/notify"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// Backend implements device.Backend on oto
type Backend struct {
	log slog.Logger
	hub *notify.Hub
	cfg Config

	mu     sync.Mutex
	ctx    *otov3.Context
	format device.StreamConfig
}

// New returns a backend. No audio resources are taken until Open.
func New(cfg Config) (*Backend, error) {
	return &Backend{
		log:    cfg.logger(),
		hub:    notify.NewHub(),
		cfg:    cfg,
		format: defaultConfig,
	}, nil
}

// Close suspends the oto context. oto cannot release it within a process.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Suspend()
}

// Name implements device.Backend
func (b *Backend) Name() string { return "oto" }

func notFound(id device.ID) error {
	return fmt.Errorf("device %s not found", id)
}

// QueryStatus implements device.Backend
func (b *Backend) QueryStatus(id device.ID) (bool, error) {
	return isDefault(id), nil
}

// QueryName implements device.Backend
func (b *Backend) QueryName(id device.ID) (string, error) {
	if !isDefault(id) {
		return "", notFound(id)
	}
	return "System Output", nil
}

// QueryManufacturer implements device.Backend
func (b *Backend) QueryManufacturer(id device.ID) (string, error) {
	if !isDefault(id) {
		return "", notFound(id)
	}
	return b.Name(), nil
}

// QueryNativeSampleRates implements device.Backend
func (b *Backend) QueryNativeSampleRates(id device.ID) ([]int, error) {
	if !isDefault(id) {
		return nil, notFound(id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		return []int{b.format.SampleRate}, nil
	}
	return slices.Clone(nativeRates), nil
}

// QueryStreamConfig implements device.Backend
func (b *Backend) QueryStreamConfig(id device.ID, dir device.Direction) (device.StreamConfig, error) {
	if !isDefault(id) {
		return device.StreamConfig{}, notFound(id)
	}
	if dir == device.DirectionInput {
		return device.StreamConfig{}, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format, nil
}

// Subscribe implements device.Backend. oto reports no device changes so
// only stream stops are delivered.
func (b *Backend) Subscribe(id device.ID, onChange func(device.ChangeKind)) (device.Subscription, error) {
	return b.hub.Subscribe(id, onChange), nil
}

// context returns the process wide context, creating it for req on first use
func (b *Backend) context(req device.StreamRequest) (*otov3.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil {
		if req.SampleRate != b.format.SampleRate || req.OutputChannels != b.format.Channels {
			return nil, fmt.Errorf("%w: have %s, want %dHz/%dch", ErrFormatLocked,
				b.format, req.SampleRate, req.OutputChannels)
		}
		if err := b.ctx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return b.ctx, nil
	}

	op := &otov3.NewContextOptions{
		SampleRate:   req.SampleRate,
		ChannelCount: req.OutputChannels,
		Format:       otov3.FormatFloat32LE,
		BufferSize:   b.cfg.BufferSize,
	}
	ctx, ready, err := otov3.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	b.ctx = ctx
	b.format = device.StreamConfig{
		Channels:     req.OutputChannels,
		SampleRate:   req.SampleRate,
		SampleFormat: audio.SampleFormatF32,
		PeriodFrames: req.PeriodFrames,
	}
	b.log.Infof("Audio output initialized: %s", b.format)
	return ctx, nil
}

// Open implements device.Backend
func (b *Backend) Open(id device.ID, req device.StreamRequest, proc device.DataProc) (device.Stream, error) {
	if !isDefault(id) {
		return nil, notFound(id)
	}
	if req.InputChannels > 0 {
		return nil, ErrOutputOnly
	}
	if req.OutputChannels <= 0 {
		return nil, fmt.Errorf("stream request has no output channels")
	}

	ctx, err := b.context(req)
	if err != nil {
		return nil, err
	}

	r := newPullReader(proc, req.OutputChannels)
	player := ctx.NewPlayer(r)
	player.Play()

	b.log.Debugf("Opened oto player (%s)", req)
	return &stream{player: player, reader: r}, nil
}

type stream struct {
	player *otov3.Player
	reader *pullReader
	once   sync.Once
	err    error
}

// Close implements device.Stream
func (s *stream) Close() error {
	s.once.Do(func() {
		s.reader.close()
		s.err = s.player.Close()
	})
	return s.err
}
