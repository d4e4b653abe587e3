// ABOUTME: PCM encoder
// ABOUTME: Encodes float32 samples to little-endian packed PCM bytes
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	format audio.SampleFormat
}

// NewPCM creates a new PCM encoder for format
func NewPCM(format audio.SampleFormat) (*PCMEncoder, error) {
	if format.BytesPerSample() == 0 {
		return nil, fmt.Errorf("unsupported sample format: %s", format)
	}
	return &PCMEncoder{format: format}, nil
}

// SampleFormat returns the encoded sample format
func (e *PCMEncoder) SampleFormat() audio.SampleFormat { return e.format }

// Encode converts float32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*e.format.BytesPerSample())
	audio.EncodeSamples(e.format, samples, out)
	return out
}

// AppendEncode appends the encoding of samples to dst
func (e *PCMEncoder) AppendEncode(dst []byte, samples []float32) []byte {
	n := len(samples) * e.format.BytesPerSample()
	start := len(dst)
	dst = append(dst, make([]byte, n)...)
	audio.EncodeSamples(e.format, samples, dst[start:])
	return dst
}
