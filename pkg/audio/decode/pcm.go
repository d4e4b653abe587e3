// ABOUTME: Raw PCM decoder for little-endian interleaved samples
// ABOUTME: Handles 16, 24 and 32-bit integer and 32-bit float data
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
)

// PCM decodes raw little-endian samples
type PCM struct {
	r      io.Reader
	c      io.Closer
	format audio.Format
	buf    []byte
}

// NewPCM decodes raw samples in format from rc. Close closes rc.
func NewPCM(rc io.ReadCloser, format audio.Format) (Source, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("invalid PCM format: %s", format)
	}
	if format.SampleFormat.BytesPerSample() == 0 {
		return nil, fmt.Errorf("unsupported sample format: %s", format.SampleFormat)
	}
	return &PCM{r: rc, c: rc, format: format}, nil
}

// Read implements Source
func (d *PCM) Read(dst []float32) (int, error) {
	size := d.format.SampleFormat.BytesPerSample()
	frameBytes := size * d.format.Channels
	want := len(dst) / d.format.Channels * frameBytes
	if cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	buf := d.buf[:want]

	n, err := io.ReadFull(d.r, buf)
	n -= n % frameBytes
	samples := audio.DecodeSamples(d.format.SampleFormat, buf[:n], dst)
	switch {
	case err == nil:
		return samples, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if samples > 0 {
			return samples, nil
		}
		return 0, io.EOF
	default:
		return samples, fmt.Errorf("pcm read error: %w", err)
	}
}

// Format implements Source
func (d *PCM) Format() audio.Format { return d.format }

// Close implements Source
func (d *PCM) Close() error { return d.c.Close() }
