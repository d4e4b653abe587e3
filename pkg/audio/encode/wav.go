// ABOUTME: WAV file writer
// ABOUTME: Writes a RIFF header up front and patches the sizes on Close
package encode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
)

const wavHeaderSize = 44

// ErrTooLarge is returned once a WAV file would exceed the 4 GiB RIFF limit
var ErrTooLarge = errors.New("WAV data exceeds 4 GiB")

// WAVWriter streams samples into a WAV container
type WAVWriter struct {
	w      io.WriteSeeker
	format audio.Format
	enc    *PCMEncoder
	buf    []byte
	data   int64
	closed bool
}

// NewWAV writes a WAV header for format to w
func NewWAV(w io.WriteSeeker, format audio.Format) (*WAVWriter, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("invalid WAV format: %s", format)
	}
	enc, err := NewPCM(format.SampleFormat)
	if err != nil {
		return nil, err
	}

	ww := &WAVWriter{w: w, format: format, enc: enc}
	if _, err := w.Write(ww.header()); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return ww, nil
}

func (w *WAVWriter) header() []byte {
	size := w.format.SampleFormat.BytesPerSample()
	tag := uint16(1)
	if w.format.SampleFormat == audio.SampleFormatF32 {
		tag = 3
	}

	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+w.data))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], tag)
	binary.LittleEndian.PutUint16(h[22:24], uint16(w.format.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(w.format.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(w.format.SampleRate*w.format.Channels*size))
	binary.LittleEndian.PutUint16(h[32:34], uint16(w.format.Channels*size))
	binary.LittleEndian.PutUint16(h[34:36], uint16(size*8))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(w.data))
	return h
}

// Format returns the file format
func (w *WAVWriter) Format() audio.Format { return w.format }

// Frames returns the number of frames written so far
func (w *WAVWriter) Frames() int64 {
	return w.data / int64(w.format.Channels*w.format.SampleFormat.BytesPerSample())
}

// Write appends interleaved samples. Trailing partial frames are dropped.
func (w *WAVWriter) Write(samples []float32) error {
	if w.closed {
		return errors.New("WAV writer closed")
	}
	samples = samples[:len(samples)/w.format.Channels*w.format.Channels]
	w.buf = w.enc.AppendEncode(w.buf[:0], samples)
	if w.data+int64(len(w.buf))+36 > math.MaxUint32 {
		return ErrTooLarge
	}
	n, err := w.w.Write(w.buf)
	w.data += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return nil
}

// Close rewrites the header with the final sizes. It does not close the
// underlying writer.
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to WAV header: %w", err)
	}
	if _, err := w.w.Write(w.header()); err != nil {
		return fmt.Errorf("failed to rewrite WAV header: %w", err)
	}
	_, err := w.w.Seek(0, io.SeekEnd)
	return err
}
