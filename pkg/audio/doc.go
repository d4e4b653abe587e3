// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, SampleBuffer types and sample conversion functions
// Package audio provides fundamental audio types shared by devices, backends
// and delegates.
//
// Samples travel through the library as interleaved float32 values in the
// range [-1, 1]. Backends convert between their native packed encodings and
// float32 with DecodeSamples and EncodeSamples.
//
// Example:
//
//	format := audio.Format{
//	    SampleRate:   48000,
//	    Channels:     2,
//	    SampleFormat: audio.SampleFormatF32,
//	}
//	buf := audio.NewSampleBuffer(format, 480)
package audio
