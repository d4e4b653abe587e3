// ABOUTME: WAV decoder reading the RIFF header and handing the data to PCM
// ABOUTME: Supports PCM integer and IEEE float fmt chunks
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
)

// WAVE fmt chunk format tags
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// ErrInvalidWAV is returned for malformed WAV headers
var ErrInvalidWAV = errors.New("invalid WAV file")

// NewWAV decodes a WAV stream from rc. Close closes rc.
func NewWAV(rc io.ReadCloser) (Source, error) {
	var riff [12]byte
	if _, err := io.ReadFull(rc, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE signature", ErrInvalidWAV)
	}

	var format audio.Format
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(rc, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			chunk := make([]byte, size)
			if _, err := io.ReadFull(rc, chunk); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
			f, err := parseFmt(chunk)
			if err != nil {
				return nil, err
			}
			format = f
		case "data":
			if !format.Valid() {
				return nil, fmt.Errorf("%w: data before fmt", ErrInvalidWAV)
			}
			return NewPCM(struct {
				io.Reader
				io.Closer
			}{io.LimitReader(rc, size), rc}, format)
		default:
			// Chunks are word aligned.
			if _, err := io.CopyN(io.Discard, rc, size+size%2); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
		}
		if id == "fmt " && size%2 == 1 {
			if _, err := io.CopyN(io.Discard, rc, 1); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
		}
	}
}

func parseFmt(chunk []byte) (audio.Format, error) {
	tag := binary.LittleEndian.Uint16(chunk[0:2])
	channels := int(binary.LittleEndian.Uint16(chunk[2:4]))
	rate := int(binary.LittleEndian.Uint32(chunk[4:8]))
	bits := int(binary.LittleEndian.Uint16(chunk[14:16]))

	format := audio.Format{SampleRate: rate, Channels: channels}
	switch {
	case tag == wavFormatPCM && bits == 16:
		format.SampleFormat = audio.SampleFormatS16
	case tag == wavFormatPCM && bits == 24:
		format.SampleFormat = audio.SampleFormatS24
	case tag == wavFormatPCM && bits == 32:
		format.SampleFormat = audio.SampleFormatS32
	case tag == wavFormatFloat && bits == 32:
		format.SampleFormat = audio.SampleFormatF32
	default:
		return audio.Format{}, fmt.Errorf("%w: format tag %d with %d bits", ErrUnsupported, tag, bits)
	}
	if !format.Valid() {
		return audio.Format{}, fmt.Errorf("%w: %s", ErrInvalidWAV, format)
	}
	return format, nil
}
