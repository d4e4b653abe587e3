// ABOUTME: Audio resampling package with streaming resamplers
// ABOUTME: Converts interleaved float32 audio between sample rates
// Package resample provides streaming audio sample rate conversion.
//
// Two implementations are available. QualityBest uses a polyphase soxr-style
// engine per channel and is the default. QualityLinear uses linear
// interpolation and is cheap enough for constrained callbacks. Both keep
// state between calls so a stream split into arbitrary chunks resamples the
// same as if it were processed at once.
//
// Example:
//
//	r, err := resample.New(resample.QualityBest, 44100, 48000, 2)
//	out, err := r.Process(inputSamples)
package resample
