// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, sample buffers and sample conversions
package audio

import (
	"fmt"
	"math"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// SampleFormat is the native encoding of a single sample
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota
	SampleFormatS16
	SampleFormatS24
	SampleFormatS32
	SampleFormatF32
)

// String returns a short human-readable name
func (f SampleFormat) String() string {
	switch f {
	case SampleFormatS16:
		return "S16"
	case SampleFormatS24:
		return "S24"
	case SampleFormatS32:
		return "S32"
	case SampleFormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// BytesPerSample returns the packed size of one sample
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatS16:
		return 2
	case SampleFormatS24:
		return 3
	case SampleFormatS32, SampleFormatF32:
		return 4
	default:
		return 0
	}
}

// Format describes an audio stream format
type Format struct {
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat
}

// Valid reports whether the format can carry audio
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// String formats as e.g. "48000Hz/2ch/F32"
func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.SampleFormat)
}

// SampleBuffer holds interleaved float32 samples in the range [-1, 1]
type SampleBuffer struct {
	Format  Format
	Samples []float32
}

// NewSampleBuffer allocates a silent buffer holding frames frames
func NewSampleBuffer(format Format, frames int) SampleBuffer {
	return SampleBuffer{
		Format:  format,
		Samples: make([]float32, frames*format.Channels),
	}
}

// Frames returns the number of whole frames in the buffer
func (b SampleBuffer) Frames() int {
	if b.Format.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Silence zeroes every sample in s
func Silence(s []float32) {
	for i := range s {
		s[i] = 0
	}
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// FloatToInt24 converts a float sample to the 24-bit integer range with clipping
func FloatToInt24(sample float32) int32 {
	scaled := math.Round(float64(sample) * Max24Bit)
	if scaled > Max24Bit {
		return Max24Bit
	}
	if scaled < Min24Bit {
		return Min24Bit
	}
	return int32(scaled)
}

// FloatFromInt24 converts a 24-bit integer sample to float
func FloatFromInt24(sample int32) float32 {
	return float32(sample) / (Max24Bit + 1)
}

// FloatToInt16 converts a float sample to int16 with clipping
func FloatToInt16(sample float32) int16 {
	scaled := math.Round(float64(sample) * math.MaxInt16)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// FloatFromInt16 converts an int16 sample to float
func FloatFromInt16(sample int16) float32 {
	return float32(sample) / (math.MaxInt16 + 1)
}

// DecodeSamples unpacks little-endian native samples from src into dst.
// It returns the number of samples written.
func DecodeSamples(format SampleFormat, src []byte, dst []float32) int {
	size := format.BytesPerSample()
	if size == 0 {
		return 0
	}
	n := min(len(src)/size, len(dst))
	for i := 0; i < n; i++ {
		b := src[i*size:]
		switch format {
		case SampleFormatS16:
			dst[i] = FloatFromInt16(int16(uint16(b[0]) | uint16(b[1])<<8))
		case SampleFormatS24:
			dst[i] = FloatFromInt24(SampleFrom24Bit([3]byte{b[0], b[1], b[2]}))
		case SampleFormatS32:
			v := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
			dst[i] = float32(float64(v) / (math.MaxInt32 + 1))
		case SampleFormatF32:
			dst[i] = math.Float32frombits(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
		}
	}
	return n
}

// EncodeSamples packs src into dst as little-endian native samples.
// It returns the number of samples written.
func EncodeSamples(format SampleFormat, src []float32, dst []byte) int {
	size := format.BytesPerSample()
	if size == 0 {
		return 0
	}
	n := min(len(dst)/size, len(src))
	for i := 0; i < n; i++ {
		b := dst[i*size:]
		switch format {
		case SampleFormatS16:
			v := FloatToInt16(src[i])
			b[0] = byte(v)
			b[1] = byte(v >> 8)
		case SampleFormatS24:
			packed := SampleTo24Bit(FloatToInt24(src[i]))
			copy(b, packed[:])
		case SampleFormatS32:
			v := FloatToInt24(src[i]) << 8
			b[0] = byte(v)
			b[1] = byte(v >> 8)
			b[2] = byte(v >> 16)
			b[3] = byte(v >> 24)
		case SampleFormatF32:
			v := math.Float32bits(src[i])
			b[0] = byte(v)
			b[1] = byte(v >> 8)
			b[2] = byte(v >> 16)
			b[3] = byte(v >> 24)
		}
	}
	return n
}

// RemapChannels copies frames from src (srcCh channels) into dst (dstCh
// channels). Mono is duplicated when widening, channels are averaged when
// narrowing to mono, and extra channels are dropped or zero-filled otherwise.
// It returns the number of frames written.
func RemapChannels(src []float32, srcCh int, dst []float32, dstCh int) int {
	if srcCh <= 0 || dstCh <= 0 {
		return 0
	}
	frames := min(len(src)/srcCh, len(dst)/dstCh)
	if srcCh == dstCh {
		copy(dst, src[:frames*srcCh])
		return frames
	}
	for f := 0; f < frames; f++ {
		in := src[f*srcCh : (f+1)*srcCh]
		out := dst[f*dstCh : (f+1)*dstCh]
		switch {
		case srcCh == 1:
			for ch := range out {
				out[ch] = in[0]
			}
		case dstCh == 1:
			var sum float32
			for _, s := range in {
				sum += s
			}
			out[0] = sum / float32(srcCh)
		default:
			for ch := range out {
				if ch < srcCh {
					out[ch] = in[ch]
				} else {
					out[ch] = 0
				}
			}
		}
	}
	return frames
}
