// ABOUTME: Tests for audio resamplers
// ABOUTME: Tests linear interpolation and streaming continuity between sample rates
package resample

import (
	"math"
	"testing"
)

func ramp(frames, channels int, step float32) []float32 {
	input := make([]float32, frames*channels)
	for i := range input {
		input[i] = float32(i/channels) * step
	}
	return input
}

func TestNewLinear(t *testing.T) {
	r := NewLinear(44100, 48000, 2)

	if r.inputRate != 44100 {
		t.Errorf("expected inputRate 44100, got %d", r.inputRate)
	}
	if r.outputRate != 48000 {
		t.Errorf("expected outputRate 48000, got %d", r.outputRate)
	}
	if r.channels != 2 {
		t.Errorf("expected channels 2, got %d", r.channels)
	}
}

func TestLinearUpsampling(t *testing.T) {
	r := NewLinear(44100, 48000, 2)

	input := ramp(100, 2, 0.001)
	out, err := r.Process(input)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	expected := int(float64(100) * 48000 / 44100)
	got := len(out) / 2
	if got < expected-2 || got > expected+2 {
		t.Errorf("expected ~%d frames, got %d", expected, got)
	}
}

func TestLinearDownsampling(t *testing.T) {
	r := NewLinear(48000, 44100, 2)

	out, err := r.Process(ramp(100, 2, 0.001))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	expected := int(float64(100) * 44100 / 48000)
	got := len(out) / 2
	if got < expected-2 || got > expected+2 {
		t.Errorf("expected ~%d frames, got %d", expected, got)
	}
}

func TestLinearInterpolatesRamp(t *testing.T) {
	// Upsampling a linear ramp must stay on the ramp
	r := NewLinear(1000, 2000, 1)

	out, err := r.Process(ramp(10, 1, 1))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for i, v := range out {
		want := float32(i) * 0.5
		if math.Abs(float64(v-want)) > 1e-5 {
			t.Errorf("frame %d: expected %v, got %v", i, want, v)
		}
	}
}

func TestLinearStereoChannelsIndependent(t *testing.T) {
	r := NewLinear(44100, 48000, 2)

	input := make([]float32, 20)
	for i := 0; i < 10; i++ {
		input[i*2] = 0.5
		input[i*2+1] = -0.5
	}

	out, err := r.Process(input)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("resampler produced no output")
	}

	for i := 0; i < len(out)/2; i++ {
		if out[i*2] != 0.5 || out[i*2+1] != -0.5 {
			t.Fatalf("frame %d: channel pattern not preserved: %v %v", i, out[i*2], out[i*2+1])
		}
	}
}

func TestLinearChunkedMatchesWhole(t *testing.T) {
	input := ramp(1000, 2, 0.0005)

	whole := NewLinear(44100, 48000, 2)
	expected, _ := whole.Process(input)
	expected = append([]float32(nil), expected...)

	chunked := NewLinear(44100, 48000, 2)
	var got []float32
	for start := 0; start < 1000; start += 37 {
		end := min(start+37, 1000)
		out, err := chunked.Process(input[start*2 : end*2])
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		got = append(got, out...)
	}

	if len(got) != len(expected) {
		t.Fatalf("expected %d samples from chunked stream, got %d", len(expected), len(got))
	}
	for i := range got {
		if math.Abs(float64(got[i]-expected[i])) > 1e-5 {
			t.Fatalf("sample %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}

func TestLinearCumulativeCountConverges(t *testing.T) {
	r := NewLinear(44100, 48000, 1)

	var inFrames, outFrames int
	chunk := make([]float32, 1000)
	for i := 0; i < 50; i++ {
		out, err := r.Process(chunk)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		inFrames += len(chunk)
		outFrames += len(out)
	}

	expected := float64(inFrames) * 48000 / 44100
	if math.Abs(float64(outFrames)-expected) > 2 {
		t.Errorf("expected ~%.1f output frames, got %d", expected, outFrames)
	}
}

func TestLinearReset(t *testing.T) {
	r := NewLinear(44100, 48000, 2)
	if _, err := r.Process(ramp(50, 2, 0.01)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	r.Reset()

	if r.position != 0 || r.primed {
		t.Errorf("expected reset state, got position=%v primed=%v", r.position, r.primed)
	}
}

func TestLinearEmptyInput(t *testing.T) {
	r := NewLinear(44100, 48000, 2)

	out, err := r.Process(nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no output, got %d samples", len(out))
	}
}

func TestNewIdentity(t *testing.T) {
	r, err := New(QualityBest, 48000, 48000, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	input := ramp(100, 2, 0.001)
	out, err := r.Process(input)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(out) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(out))
	}
	for i := range input {
		if out[i] != input[i] {
			t.Fatalf("sample %d: expected %v, got %v", i, input[i], out[i])
		}
	}
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		name     string
		in, out  int
		channels int
	}{
		{"zero input rate", 0, 48000, 2},
		{"zero output rate", 44100, 0, 2},
		{"zero channels", 44100, 48000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(QualityLinear, tt.in, tt.out, tt.channels); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewBestProducesOutput(t *testing.T) {
	r, err := New(QualityBest, 44100, 48000, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	chunk := make([]float32, 4410*2)
	for i := 0; i < len(chunk)/2; i++ {
		v := float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
		chunk[i*2] = v
		chunk[i*2+1] = v
	}

	var outFrames int
	for i := 0; i < 10; i++ {
		out, err := r.Process(chunk)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if len(out)%2 != 0 {
			t.Fatalf("output is not frame aligned: %d samples", len(out))
		}
		outFrames += len(out) / 2
	}

	if outFrames == 0 {
		t.Fatal("high quality resampler produced no output")
	}
	// 44100 input frames should yield about 48000 output frames.
	if outFrames > 48000+4800 {
		t.Errorf("produced too many frames: %d", outFrames)
	}
}

func TestParseQuality(t *testing.T) {
	for _, q := range []Quality{QualityBest, QualityLinear} {
		parsed, err := ParseQuality(q.String())
		if err != nil {
			t.Fatalf("ParseQuality(%q) failed: %v", q.String(), err)
		}
		if parsed != q {
			t.Errorf("expected %v, got %v", q, parsed)
		}
	}
	if _, err := ParseQuality("bogus"); err == nil {
		t.Error("expected error for unknown quality")
	}
}

func TestSoxrResetMatchesFreshEngine(t *testing.T) {
	chunk := make([]float32, 4410*2)
	for i := 0; i < len(chunk)/2; i++ {
		v := float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
		chunk[i*2] = v
		chunk[i*2+1] = v
	}

	used, err := NewSoxr(44100, 48000, 2)
	if err != nil {
		t.Fatalf("NewSoxr failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := used.Process(chunk); err != nil {
			t.Fatalf("Process failed: %v", err)
		}
	}
	engines := append([]engine(nil), used.engines...)
	used.Reset()
	for i := range engines {
		if used.engines[i] != engines[i] {
			t.Fatal("Reset replaced an engine")
		}
	}

	fresh, err := NewSoxr(44100, 48000, 2)
	if err != nil {
		t.Fatalf("NewSoxr failed: %v", err)
	}

	want, err := fresh.Process(chunk)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	want = append([]float32(nil), want...)
	got, err := used.Process(chunk)
	if err != nil {
		t.Fatalf("Process after Reset failed: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d samples after reset, got %d", len(want), len(got))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
