// ABOUTME: Audio encoders turning float32 samples into PCM bytes
// ABOUTME: Provides the PCM encoder and a seekable WAV writer
// Package encode writes float32 audio as packed PCM.
//
// Supports: 16, 24 and 32-bit integer PCM and 32-bit float, raw or inside a
// WAV container.
//
// Example:
//
//	w, err := encode.NewWAV(file, format)
//	err = w.Write(samples)
//	err = w.Close()
package encode
