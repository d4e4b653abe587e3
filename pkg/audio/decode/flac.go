// ABOUTME: FLAC decoder built on mewkiz/flac
// ABOUTME: Frames are parsed one at a time and carried over between reads
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
)

// FLAC decodes a FLAC stream
type FLAC struct {
	rc     io.ReadCloser
	stream *flac.Stream
	format audio.Format
	scale  float32

	// Decoded but unread samples of the current frame.
	pending []float32
	offset  int
}

// NewFLAC decodes FLAC from rc. Close closes rc.
func NewFLAC(rc io.ReadCloser) (Source, error) {
	stream, err := flac.New(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	bits := int(info.BitsPerSample)
	if bits < 4 || bits > 32 {
		return nil, fmt.Errorf("unsupported FLAC bit depth: %d", bits)
	}

	format := audio.Format{
		SampleRate: int(info.SampleRate),
		Channels:   int(info.NChannels),
	}
	switch {
	case bits <= 16:
		format.SampleFormat = audio.SampleFormatS16
	case bits <= 24:
		format.SampleFormat = audio.SampleFormatS24
	default:
		format.SampleFormat = audio.SampleFormatS32
	}

	return &FLAC{
		rc:     rc,
		stream: stream,
		format: format,
		scale:  1 / float32(uint64(1)<<(bits-1)),
	}, nil
}

// Read implements Source
func (d *FLAC) Read(dst []float32) (int, error) {
	ch := d.format.Channels
	want := len(dst) / ch * ch
	written := 0

	for written < want {
		if d.offset == len(d.pending) {
			if err := d.next(); err != nil {
				if written > 0 && errors.Is(err, io.EOF) {
					return written, nil
				}
				return written, err
			}
			continue
		}
		n := copy(dst[written:want], d.pending[d.offset:])
		d.offset += n
		written += n
	}
	return written, nil
}

// next decodes one frame into pending
func (d *FLAC) next() error {
	frame, err := d.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("flac decode error: %w", err)
	}

	ch := d.format.Channels
	size := int(frame.BlockSize)
	if cap(d.pending) < size*ch {
		d.pending = make([]float32, size*ch)
	}
	d.pending = d.pending[:size*ch]
	for i := 0; i < size; i++ {
		for c := 0; c < ch && c < len(frame.Subframes); c++ {
			d.pending[i*ch+c] = float32(frame.Subframes[c].Samples[i]) * d.scale
		}
	}
	d.offset = 0
	return nil
}

// Format implements Source
func (d *FLAC) Format() audio.Format { return d.format }

// Close implements Source
func (d *FLAC) Close() error {
	return errors.Join(d.stream.Close(), d.rc.Close())
}
