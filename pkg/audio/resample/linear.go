// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Carries the last input frame across calls for seamless streaming
package resample

// Linear performs linear interpolation to convert between sample rates
type Linear struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64 // input frames consumed per output frame
	position   float64 // read position, frame 0 is lastSample when primed
	lastSample []float32
	primed     bool
	out        []float32
}

// NewLinear creates a new linear resampler
func NewLinear(inputRate, outputRate, channels int) *Linear {
	return &Linear{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastSample: make([]float32, channels),
	}
}

// Process converts input samples to the output sample rate
func (r *Linear) Process(in []float32) ([]float32, error) {
	r.out = r.out[:0]

	ch := r.channels
	inputFrames := len(in) / ch
	if inputFrames == 0 {
		return r.out, nil
	}

	offset := 0
	if r.primed {
		offset = 1
	}
	total := inputFrames + offset

	frame := func(i int) []float32 {
		if i < offset {
			return r.lastSample
		}
		i -= offset
		return in[i*ch : (i+1)*ch]
	}

	for {
		idx := int(r.position)
		if idx+1 >= total {
			break
		}

		frac := float32(r.position - float64(idx))
		a, b := frame(idx), frame(idx+1)
		for c := 0; c < ch; c++ {
			r.out = append(r.out, a[c]+(b[c]-a[c])*frac)
		}
		r.position += r.ratio
	}

	// Rebase so the last frame of this chunk becomes frame 0 of the next.
	r.position -= float64(total - 1)
	copy(r.lastSample, frame(total-1))
	r.primed = true

	return r.out, nil
}

// Reset resets the resampler state
func (r *Linear) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.lastSample {
		r.lastSample[i] = 0
	}
}

// OutputFramesFor estimates how many output frames inputFrames produce
func (r *Linear) OutputFramesFor(inputFrames int) int {
	return int(float64(inputFrames) / r.ratio)
}

// InputFramesFor estimates how many input frames produce outputFrames
func (r *Linear) InputFramesFor(outputFrames int) int {
	return int(float64(outputFrames) * r.ratio)
}
