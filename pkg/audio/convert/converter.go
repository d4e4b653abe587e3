// ABOUTME: Staging format converter for device and delegate audio
// ABOUTME: Remaps channels, resamples and re-blocks frames in either direction
package convert

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/resample"
)

var (
	// ErrWrongDirection is returned when Convert is used on an output
	// converter or Fill on an input converter.
	ErrWrongDirection = errors.New("converter used in the wrong direction")

	// ErrShortRead is returned by Fill when the delegate produced no frames.
	// The unfilled part of the output is silenced.
	ErrShortRead = errors.New("delegate returned no samples")

	// ErrFormatMismatch is returned by Fill when the delegate returned a
	// buffer whose channel count differs from the negotiated format.
	ErrFormatMismatch = errors.New("delegate buffer format mismatch")
)

// Direction tells which way audio flows through a converter
type Direction int

const (
	// Input converts captured device audio for the delegate
	Input Direction = iota
	// Output converts delegate audio for playback on the device
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// maxPullsPerFill bounds how often Fill asks the delegate for more audio
// while the resampler is still priming.
const maxPullsPerFill = 64

// Converter moves audio between a device format and a delegate format.
//
// Staged frames live in stage[offset:count] (in frames of the staged format)
// and always satisfy offset <= count <= cap. A Converter is not safe for
// concurrent use; the device serializes access from its callback.
type Converter struct {
	dir         Direction
	device      audio.Format
	delegate    audio.Format
	blockFrames int

	rs resample.Resampler // nil when the rates match

	scratch []float32
	stage   []float32
	offset  int
	count   int
}

// NewInput creates a converter for captured audio
func NewInput(device, delegate audio.Format, blockFrames int, quality resample.Quality) (*Converter, error) {
	return New(Input, device, delegate, blockFrames, quality)
}

// NewOutput creates a converter for rendered audio
func NewOutput(device, delegate audio.Format, blockFrames int, quality resample.Quality) (*Converter, error) {
	return New(Output, device, delegate, blockFrames, quality)
}

// New creates a converter. blockFrames is the delegate block size used to
// emit captured audio and to pull rendered audio.
func New(dir Direction, device, delegate audio.Format, blockFrames int, quality resample.Quality) (*Converter, error) {
	if !device.Valid() {
		return nil, fmt.Errorf("invalid device format %v", device)
	}
	if !delegate.Valid() {
		return nil, fmt.Errorf("invalid delegate format %v", delegate)
	}
	if blockFrames <= 0 {
		return nil, fmt.Errorf("invalid block size %d", blockFrames)
	}

	c := &Converter{
		dir:         dir,
		device:      device,
		delegate:    delegate,
		blockFrames: blockFrames,
	}

	if device.SampleRate != delegate.SampleRate {
		in, out := device.SampleRate, delegate.SampleRate
		if dir == Output {
			in, out = out, in
		}
		rs, err := resample.New(quality, in, out, delegate.Channels)
		if err != nil {
			return nil, err
		}
		c.rs = rs
	}

	// Size the scratch and staging space for a few blocks so steady state
	// callbacks do not allocate.
	ratio := resample.Ratio(delegate.SampleRate, device.SampleRate)
	deviceFrames := int(float64(blockFrames)*ratio) + 16
	maxCh := max(device.Channels, delegate.Channels)
	c.scratch = make([]float32, 0, 4*max(blockFrames, deviceFrames)*maxCh)
	c.stage = make([]float32, 0, 2*max(blockFrames, deviceFrames)*maxCh)

	return c, nil
}

// Direction returns the direction the converter was built for
func (c *Converter) Direction() Direction { return c.dir }

// DeviceFormat returns the device side format
func (c *Converter) DeviceFormat() audio.Format { return c.device }

// DelegateFormat returns the delegate side format
func (c *Converter) DelegateFormat() audio.Format { return c.delegate }

// BlockFrames returns the delegate block size
func (c *Converter) BlockFrames() int { return c.blockFrames }

// Identity reports whether the rates match and no resampling happens
func (c *Converter) Identity() bool { return c.rs == nil }

// Staged returns the number of frames held between calls
func (c *Converter) Staged() int { return c.count - c.offset }

// Reset drops staged frames and resampler history
func (c *Converter) Reset() {
	c.offset = 0
	c.count = 0
	c.stage = c.stage[:0]
	if c.rs != nil {
		c.rs.Reset()
	}
}

// Convert takes interleaved device frames and emits delegate buffers. With
// matching rates the whole input is emitted at once. Otherwise complete
// blocks of BlockFrames are emitted and the remainder is staged.
//
// Emitted buffers are only valid for the duration of the emit call.
func (c *Converter) Convert(in []float32, emit func(audio.SampleBuffer)) error {
	if c.dir != Input {
		return ErrWrongDirection
	}

	frames := len(in) / c.device.Channels
	if frames == 0 {
		return nil
	}

	dch := c.delegate.Channels
	c.scratch = grow(c.scratch, frames*dch)
	frames = audio.RemapChannels(in, c.device.Channels, c.scratch, dch)
	remapped := c.scratch[:frames*dch]

	if c.rs == nil {
		emit(audio.SampleBuffer{Format: c.delegate, Samples: remapped})
		return nil
	}

	resampled, err := c.rs.Process(remapped)
	if err != nil {
		return fmt.Errorf("resample input: %w", err)
	}

	c.stage = append(c.stage[:c.count*dch], resampled...)
	c.count = len(c.stage) / dch

	block := c.blockFrames
	for c.count-c.offset >= block {
		emit(audio.SampleBuffer{
			Format:  c.delegate,
			Samples: c.stage[c.offset*dch : (c.offset+block)*dch],
		})
		c.offset += block
	}

	// Compact so the remainder starts at the front.
	n := copy(c.stage, c.stage[c.offset*dch:c.count*dch])
	c.stage = c.stage[:n]
	c.count -= c.offset
	c.offset = 0

	return nil
}

// Fill writes exactly len(out)/channels device frames into out, pulling
// delegate blocks as needed. Frames beyond what out can hold are staged for
// the next call. On error the unfilled tail of out is silenced.
func (c *Converter) Fill(out []float32, pull func(frames int) (audio.SampleBuffer, error)) error {
	if c.dir != Output {
		audio.Silence(out)
		return ErrWrongDirection
	}

	ch := c.device.Channels
	frames := len(out) / ch
	if frames == 0 {
		return nil
	}

	if c.rs == nil {
		return c.fillDirect(out[:frames*ch], frames, pull)
	}

	written := 0
	pulls := 0
	for written < frames {
		if avail := c.count - c.offset; avail > 0 {
			n := min(avail, frames-written)
			copy(out[written*ch:(written+n)*ch], c.stage[c.offset*ch:(c.offset+n)*ch])
			c.offset += n
			written += n
			if c.offset == c.count {
				c.offset, c.count = 0, 0
				c.stage = c.stage[:0]
			}
			continue
		}

		if pulls == maxPullsPerFill {
			audio.Silence(out[written*ch:])
			return ErrShortRead
		}
		pulls++

		buf, err := pull(c.blockFrames)
		if err != nil {
			audio.Silence(out[written*ch:])
			return err
		}
		if err := c.checkBuffer(buf); err != nil {
			audio.Silence(out[written*ch:])
			return err
		}

		resampled, err := c.rs.Process(buf.Samples[:len(buf.Samples)/c.delegate.Channels*c.delegate.Channels])
		if err != nil {
			audio.Silence(out[written*ch:])
			return fmt.Errorf("resample output: %w", err)
		}

		got := len(resampled) / c.delegate.Channels
		c.stage = grow(c.stage, got*ch)
		got = audio.RemapChannels(resampled, c.delegate.Channels, c.stage, ch)
		c.offset, c.count = 0, got
	}

	return nil
}

// fillDirect serves output with matching rates: one pull of exactly the
// requested frame count, nothing staged.
func (c *Converter) fillDirect(out []float32, frames int, pull func(int) (audio.SampleBuffer, error)) error {
	buf, err := pull(frames)
	if err != nil {
		audio.Silence(out)
		return err
	}
	if err := c.checkBuffer(buf); err != nil {
		audio.Silence(out)
		return err
	}

	n := audio.RemapChannels(buf.Samples, c.delegate.Channels, out, c.device.Channels)
	if n < frames {
		audio.Silence(out[n*c.device.Channels:])
	}
	return nil
}

func (c *Converter) checkBuffer(buf audio.SampleBuffer) error {
	if buf.Format.Channels != 0 && buf.Format.Channels != c.delegate.Channels {
		return fmt.Errorf("%w: got %d channels, want %d",
			ErrFormatMismatch, buf.Format.Channels, c.delegate.Channels)
	}
	if len(buf.Samples) < c.delegate.Channels {
		return ErrShortRead
	}
	return nil
}

// grow returns s resized to n samples, reallocating only when needed
func grow(s []float32, n int) []float32 {
	if cap(s) < n {
		return make([]float32, n, 2*n)
	}
	return s[:n]
}
