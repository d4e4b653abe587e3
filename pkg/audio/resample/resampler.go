// ABOUTME: Resampler interface and constructor
// ABOUTME: Selects a resampling engine by quality policy
package resample

import "fmt"

// Quality selects the resampling algorithm
type Quality int

const (
	// QualityBest is the highest quality engine and the default policy
	QualityBest Quality = iota
	// QualityLinear uses linear interpolation
	QualityLinear
)

// String returns the quality name
func (q Quality) String() string {
	switch q {
	case QualityBest:
		return "best"
	case QualityLinear:
		return "linear"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

// ParseQuality parses a quality name as produced by String
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "best", "":
		return QualityBest, nil
	case "linear":
		return QualityLinear, nil
	default:
		return 0, fmt.Errorf("unknown resampler quality %q", s)
	}
}

// Resampler converts a stream of interleaved samples between two rates
type Resampler interface {
	// Process consumes interleaved input and returns the interleaved output
	// produced so far. The returned slice is only valid until the next call.
	Process(in []float32) ([]float32, error)

	// Reset drops all history so the next Process starts a new stream
	Reset()
}

// New creates a resampler for the given quality and rates
func New(quality Quality, inputRate, outputRate, channels int) (Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", inputRate, outputRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	if inputRate == outputRate {
		return &identity{}, nil
	}

	switch quality {
	case QualityLinear:
		return NewLinear(inputRate, outputRate, channels), nil
	case QualityBest:
		return NewSoxr(inputRate, outputRate, channels)
	default:
		return nil, fmt.Errorf("unsupported resampler quality: %v", quality)
	}
}

// Ratio returns how many output frames one input frame produces
func Ratio(inputRate, outputRate int) float64 {
	return float64(outputRate) / float64(inputRate)
}

// identity passes samples through unchanged
type identity struct {
	out []float32
}

func (r *identity) Process(in []float32) ([]float32, error) {
	r.out = append(r.out[:0], in...)
	return r.out, nil
}

func (r *identity) Reset() {}
