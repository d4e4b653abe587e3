// ABOUTME: Streaming audio decoders producing interleaved float32 samples
// ABOUTME: MP3 via go-mp3, FLAC via mewkiz/flac, WAV and raw little-endian PCM
// Package decode reads encoded audio files as float32 samples.
//
// Every decoder implements Source and returns whole frames only. Open picks
// a decoder from the file extension and can loop the file forever.
//
// Example:
//
//	src, err := decode.Open("track.flac", true)
//	buf := make([]float32, 512*src.Format().Channels)
//	n, err := src.Read(buf)
package decode
