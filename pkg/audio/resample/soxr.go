// ABOUTME: High quality resampler backed by go-audio-resampler
// ABOUTME: Runs one polyphase engine per channel on deinterleaved audio
package resample

import (
	"fmt"

	resampler "github.com/tphakala/go-audio-resampler"
)

// engine is the streaming surface used from go-audio-resampler
type engine interface {
	Process(input []float32) ([]float32, error)
	Reset()
}

// Soxr resamples with a very-high-quality polyphase engine per channel
type Soxr struct {
	inputRate  int
	outputRate int
	channels   int
	engines    []engine
	planar     [][]float32
	outputs    [][]float32
	out        []float32
}

// NewSoxr creates a new high quality resampler
func NewSoxr(inputRate, outputRate, channels int) (*Soxr, error) {
	s := &Soxr{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		planar:     make([][]float32, channels),
		outputs:    make([][]float32, channels),
	}
	if err := s.initEngines(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Soxr) initEngines() error {
	engines := make([]engine, s.channels)
	for ch := range engines {
		e, err := resampler.NewEngineFloat32(float64(s.inputRate), float64(s.outputRate), resampler.QualityVeryHigh)
		if err != nil {
			return fmt.Errorf("failed to create resampler engine %d->%d: %w",
				s.inputRate, s.outputRate, err)
		}
		engines[ch] = e
	}
	s.engines = engines
	return nil
}

// Process converts interleaved input samples to the output sample rate
func (s *Soxr) Process(in []float32) ([]float32, error) {
	s.out = s.out[:0]

	frames := len(in) / s.channels
	if frames == 0 {
		return s.out, nil
	}

	// Deinterleave into per-channel scratch buffers.
	for ch := 0; ch < s.channels; ch++ {
		buf := s.planar[ch][:0]
		for f := 0; f < frames; f++ {
			buf = append(buf, in[f*s.channels+ch])
		}
		s.planar[ch] = buf
	}

	outputs := s.outputs
	outFrames := -1
	for ch, e := range s.engines {
		res, err := e.Process(s.planar[ch])
		if err != nil {
			return s.out, fmt.Errorf("resample channel %d: %w", ch, err)
		}
		outputs[ch] = res
		if outFrames < 0 || len(res) < outFrames {
			outFrames = len(res)
		}
	}

	for f := 0; f < outFrames; f++ {
		for ch := 0; ch < s.channels; ch++ {
			s.out = append(s.out, outputs[ch][f])
		}
	}

	return s.out, nil
}

// Reset drops the filter history of every engine. The filter tables are
// kept, so Reset does not allocate.
func (s *Soxr) Reset() {
	for _, e := range s.engines {
		e.Reset()
	}
	for ch := range s.outputs {
		s.outputs[ch] = nil
	}
}
