// ABOUTME: MP3 decoder built on hajimehoshi/go-mp3
// ABOUTME: go-mp3 always yields 16-bit stereo
package decode

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
)

// MP3 decodes an MP3 stream
type MP3 struct {
	rc      io.ReadCloser
	decoder *mp3.Decoder
	format  audio.Format
	buf     []byte
}

// NewMP3 decodes MP3 from rc. Close closes rc.
func NewMP3(rc io.ReadCloser) (Source, error) {
	decoder, err := mp3.NewDecoder(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return &MP3{
		rc:      rc,
		decoder: decoder,
		format: audio.Format{
			SampleRate:   decoder.SampleRate(),
			Channels:     2,
			SampleFormat: audio.SampleFormatS16,
		},
	}, nil
}

// Read implements Source
func (d *MP3) Read(dst []float32) (int, error) {
	frames := len(dst) / d.format.Channels
	want := frames * d.format.Channels * 2
	if cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	buf := d.buf[:want]

	// Short reads from go-mp3 are filled up so only whole frames are returned.
	n, err := io.ReadFull(d.decoder, buf)
	n -= n % 4
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	samples := audio.DecodeSamples(audio.SampleFormatS16, buf[:n], dst)
	if err != nil && err != io.EOF {
		return samples, fmt.Errorf("mp3 decode error: %w", err)
	}
	if samples > 0 && err == io.EOF {
		return samples, nil
	}
	return samples, err
}

// Format implements Source
func (d *MP3) Format() audio.Format { return d.format }

// Close implements Source
func (d *MP3) Close() error { return d.rc.Close() }
