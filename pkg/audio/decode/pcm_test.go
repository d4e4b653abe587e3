// ABOUTME: Tests for the PCM and WAV decoders
// ABOUTME: Covers sample conversion, partial frames and WAV round trips
package decode

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/encode"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name    string
		format  audio.Format
		wantErr bool
	}{
		{"16-bit stereo", audio.Format{SampleRate: 48000, Channels: 2, SampleFormat: audio.SampleFormatS16}, false},
		{"float mono", audio.Format{SampleRate: 44100, Channels: 1, SampleFormat: audio.SampleFormatF32}, false},
		{"no channels", audio.Format{SampleRate: 48000, SampleFormat: audio.SampleFormatS16}, true},
		{"unknown sample format", audio.Format{SampleRate: 48000, Channels: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPCM(io.NopCloser(bytes.NewReader(nil)), tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPCMDecode16Bit(t *testing.T) {
	format := audio.Format{SampleRate: 48000, Channels: 2, SampleFormat: audio.SampleFormatS16}
	// Two frames and one stray byte.
	input := []byte{0x00, 0x40, 0x00, 0xC0, 0x00, 0x00, 0xFF, 0x7F, 0x01}
	src, err := NewPCM(io.NopCloser(bytes.NewReader(input)), format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	dst := make([]float32, 8)
	n, err := src.Read(dst)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 samples, got %d", n)
	}
	want := []float32{0.5, -0.5, 0, audio.FloatFromInt16(32767)}
	for i, w := range want {
		if dst[i] != w {
			t.Errorf("sample %d: expected %v, got %v", i, w, dst[i])
		}
	}

	if _, err := src.Read(dst); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestPCMReadWholeFrames(t *testing.T) {
	format := audio.Format{SampleRate: 48000, Channels: 2, SampleFormat: audio.SampleFormatF32}
	src, err := NewPCM(io.NopCloser(bytes.NewReader(make([]byte, 64))), format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// Room for one and a half frames only reads one.
	n, err := src.Read(make([]float32, 3))
	if err != nil || n != 2 {
		t.Errorf("expected 2 samples, got %d %v", n, err)
	}
}

func writeWAV(t *testing.T, format audio.Format, samples []float32) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer f.Close()

	w, err := encode.NewWAV(f, format)
	if err != nil {
		t.Fatalf("NewWAV failed: %v", err)
	}
	if err := w.Write(samples); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func TestWAVRoundTrip(t *testing.T) {
	formats := []audio.SampleFormat{
		audio.SampleFormatS16,
		audio.SampleFormatS24,
		audio.SampleFormatS32,
		audio.SampleFormatF32,
	}
	samples := []float32{0, 0.5, -0.5, 0.25, -0.25, 0.125}

	for _, sf := range formats {
		t.Run(sf.String(), func(t *testing.T) {
			format := audio.Format{SampleRate: 22050, Channels: 2, SampleFormat: sf}
			path := writeWAV(t, format, samples)

			src, err := Open(path, false)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer src.Close()

			if src.Format() != format {
				t.Errorf("expected format %s, got %s", format, src.Format())
			}

			dst := make([]float32, 16)
			n, err := ReadFull(src, dst)
			if !errors.Is(err, io.EOF) {
				t.Errorf("expected EOF after the data chunk, got %v", err)
			}
			if n != len(samples) {
				t.Fatalf("expected %d samples, got %d", len(samples), n)
			}
			for i, w := range samples {
				if diff := dst[i] - w; diff > 1e-4 || diff < -1e-4 {
					t.Errorf("sample %d: expected %v, got %v", i, w, dst[i])
				}
			}
		})
	}
}

func TestLoopingSource(t *testing.T) {
	format := audio.Format{SampleRate: 8000, Channels: 1, SampleFormat: audio.SampleFormatF32}
	path := writeWAV(t, format, []float32{0.1, 0.2, 0.3})

	src, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	dst := make([]float32, 7)
	n, err := ReadFull(src, dst)
	if err != nil {
		t.Fatalf("ReadFull failed: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 samples, got %d", n)
	}
	want := []float32{0.1, 0.2, 0.3, 0.1, 0.2, 0.3, 0.1}
	for i, w := range want {
		if dst[i] != w {
			t.Errorf("sample %d: expected %v, got %v", i, w, dst[i])
		}
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("not a wav file at all"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"unsupported extension", filepath.Join(dir, "a.ogg"), ErrUnsupported},
		{"bad header", bad, ErrInvalidWAV},
		{"missing file", filepath.Join(dir, "missing.wav"), os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
