// ABOUTME: Builds the delegate and its worker for each command
// ABOUTME: Recording probes the input config first to fix the WAV format
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/decode"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/encode"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
	"github.com/Resonate-Protocol/sounddevice/pkg/source"
)

// session is one run of a command against a device
type session struct {
	mode     string
	delegate device.Delegate
	format   audio.Format // zero to follow the device

	// run is the worker feeding or draining the delegate, if any
	run   func(context.Context) error
	level func() float32
	tone  *source.Tone
	close func() error
}

func bitsFormat(bits int) audio.SampleFormat {
	switch bits {
	case 24:
		return audio.SampleFormatS24
	case 32:
		return audio.SampleFormatF32
	default:
		return audio.SampleFormatS16
	}
}

// newSession prepares the delegate for cfg.Command. onChange receives device
// change notifications.
func newSession(cfg *settings, id device.ID, backend device.Backend, opts []device.Option,
	logs *loggers, onChange func(device.ChangeKind)) (*session, error) {

	srcCfg := source.Config{Log: logs.logger("SRCE"), OnStatus: onChange}

	switch cfg.Command {
	case cmdTone:
		tone := source.NewTone(cfg.Frequency, cfg.Gain)
		return &session{
			mode: fmt.Sprintf("tone %.0f Hz", cfg.Frequency),
			delegate: device.DelegateFuncs{
				Pull:   tone.PullSamples,
				Status: onChange,
			},
			level: func() float32 { return float32(tone.Gain()) },
			tone:  tone,
			close: func() error { return nil },
		}, nil

	case cmdPlay:
		src, err := decode.Open(cfg.File, cfg.Loop)
		if err != nil {
			return nil, err
		}
		player := source.NewPlayer(src, srcCfg)
		return &session{
			mode:     "play " + cfg.File,
			delegate: player,
			format:   player.Format(),
			run:      player.Run,
			level:    func() float32 { return 1 },
			close:    player.Close,
		}, nil

	case cmdRecord:
		format, err := recordFormat(cfg, id, backend, opts)
		if err != nil {
			return nil, err
		}
		f, err := os.Create(cfg.File)
		if err != nil {
			return nil, err
		}
		w, err := encode.NewWAV(f, format)
		if err != nil {
			f.Close()
			return nil, err
		}
		rec := source.NewRecorder(w, srcCfg)
		return &session{
			mode:     "record " + cfg.File,
			delegate: rec,
			format:   rec.Format(),
			run:      rec.Run,
			level:    rec.Peak,
			close: func() error {
				if err := w.Close(); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			},
		}, nil
	}

	return nil, fmt.Errorf("command %q has no session", cfg.Command)
}

// recordFormat picks the WAV format from the flags, falling back to the
// device's input configuration.
func recordFormat(cfg *settings, id device.ID, backend device.Backend, opts []device.Option) (audio.Format, error) {
	probe, err := device.New(id, backend, opts...)
	if err != nil {
		return audio.Format{}, err
	}
	in := probe.InputStreamConfig()
	if err := probe.Close(); err != nil {
		return audio.Format{}, err
	}
	if in.Channels == 0 {
		return audio.Format{}, fmt.Errorf("device %s has no input", id)
	}

	format := audio.Format{
		SampleRate:   in.SampleRate,
		Channels:     in.Channels,
		SampleFormat: bitsFormat(cfg.Bits),
	}
	if cfg.SampleRate > 0 {
		format.SampleRate = cfg.SampleRate
	}
	if cfg.Channels > 0 {
		format.Channels = cfg.Channels
	}
	return format, nil
}
