// ABOUTME: Real-time bridge between the backend callback and the delegate
// ABOUTME: Never blocks on the control path and plays silence when it cannot proceed
package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/convert"
)

var errDelegatePanic = errors.New("delegate panicked")

// ioState is everything the callback needs for one open stream. It is
// installed before the stream opens and dropped after it has drained.
type ioState struct {
	rate int
	in   *convert.Converter
	out  *convert.Converter

	// Owned by the callback goroutine.
	cb      Delegate
	failing bool

	pull func(int) (audio.SampleBuffer, error)
	push func(audio.SampleBuffer)
}

func (st *ioState) reset() {
	if st.in != nil {
		st.in.Reset()
	}
	if st.out != nil {
		st.out.Reset()
	}
}

func (st *ioState) pullDelegate(frames int) (audio.SampleBuffer, error) {
	return st.cb.PullSamples(frames, st.out.DelegateFormat())
}

func (st *ioState) pushDelegate(buf audio.SampleBuffer) {
	st.cb.PushSamples(buf)
}

// prepareIO builds the stream request and converters from the cached
// configuration.
func (d *Device) prepareIO() (StreamRequest, *ioState, error) {
	in := d.InputStreamConfig()
	out := d.OutputStreamConfig()
	if in.Channels == 0 && out.Channels == 0 {
		return StreamRequest{}, nil, errors.New("device has no input or output channels")
	}

	rate := d.cfg.sampleRate
	if rate == 0 {
		if out.Channels > 0 {
			rate = out.SampleRate
		} else {
			rate = in.SampleRate
		}
	}
	if rate == 0 {
		rate = d.NativeSampleRates().Max()
	}
	if rate == 0 {
		rate = DefaultSampleRate
	}

	period := d.cfg.periodFrames
	if period == 0 {
		period = max(out.PeriodFrames, in.PeriodFrames)
	}
	if period == 0 {
		period = DefaultPeriodFrames
	}

	block := d.cfg.blockFrames
	if block == 0 {
		block = period
	}

	req := StreamRequest{
		SampleRate:     rate,
		InputChannels:  in.Channels,
		OutputChannels: out.Channels,
		PeriodFrames:   period,
	}

	st := &ioState{rate: rate}
	st.pull = st.pullDelegate
	st.push = st.pushDelegate

	var err error
	if in.Channels > 0 {
		devFmt := audio.Format{SampleRate: rate, Channels: in.Channels, SampleFormat: audio.SampleFormatF32}
		st.in, err = convert.NewInput(devFmt, d.delegateFormat(devFmt), block, d.cfg.quality)
		if err != nil {
			return req, nil, fmt.Errorf("input converter: %w", err)
		}
	}
	if out.Channels > 0 {
		devFmt := audio.Format{SampleRate: rate, Channels: out.Channels, SampleFormat: audio.SampleFormatF32}
		st.out, err = convert.NewOutput(devFmt, d.delegateFormat(devFmt), block, d.cfg.quality)
		if err != nil {
			return req, nil, fmt.Errorf("output converter: %w", err)
		}
	}

	return req, st, nil
}

// delegateFormat fills the unset fields of the configured delegate format
// from the device format.
func (d *Device) delegateFormat(dev audio.Format) audio.Format {
	f := audio.Format{
		SampleRate:   d.cfg.delegateFmt.SampleRate,
		Channels:     d.cfg.delegateFmt.Channels,
		SampleFormat: audio.SampleFormatF32,
	}
	if f.SampleRate == 0 {
		f.SampleRate = dev.SampleRate
	}
	if f.Channels == 0 {
		f.Channels = dev.Channels
	}
	return f
}

// process is the DataProc handed to the backend.
func (d *Device) process(out, in []float32, frames int) {
	if !d.streamMu.TryRLock() {
		// Start or Stop is swapping the stream state.
		audio.Silence(out)
		d.stats.guardMisses.Add(1)
		return
	}
	defer d.streamMu.RUnlock()

	st := d.io
	if st == nil || d.stopping.Load() {
		audio.Silence(out)
		return
	}

	start := time.Now()
	d.stats.callbacks.Add(1)

	if d.resetPending.Swap(false) {
		st.reset()
	}

	if !d.ioMu.TryLock() {
		// SetDelegate holds the guard for a swap only; skip this cycle.
		audio.Silence(out)
		d.stats.guardMisses.Add(1)
		d.stats.fallbacks.Add(1)
		return
	}
	st.cb = d.delegate
	d.ioMu.Unlock()

	if err := d.exchange(st, out, in); err != nil {
		audio.Silence(out)
		d.callbackFailed(st, err)
		if errors.Is(err, errDelegatePanic) {
			st.reset()
		}
	} else if st.failing {
		st.failing = false
		d.log.Infof("Delegate of %s recovered", d.ID())
	}
	st.cb = nil

	d.cpu.update(time.Since(start), frames, st.rate)
}

// exchange runs the converters and the delegate for one callback.
func (d *Device) exchange(st *ioState, out, in []float32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errDelegatePanic, r)
		}
	}()

	if st.cb == nil {
		audio.Silence(out)
		return nil
	}

	if st.in != nil && len(in) > 0 {
		if err := st.in.Convert(in, st.push); err != nil {
			return err
		}
	}

	if st.out != nil && len(out) > 0 {
		return st.out.Fill(out, st.pull)
	}
	audio.Silence(out)
	return nil
}

func (d *Device) callbackFailed(st *ioState, err error) {
	d.stats.delegateErrors.Add(1)
	d.stats.fallbacks.Add(1)

	if !st.failing {
		st.failing = true
		d.log.Warnf("Audio callback of %s failed, playing silence: %v", d.ID(), err)
		return
	}
	d.log.Tracef("Audio callback of %s failed again: %v", d.ID(), err)
}
