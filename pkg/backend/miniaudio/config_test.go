// ABOUTME: Tests for miniaudio device ID encoding
// ABOUTME: Runs without audio hardware or cgo
package miniaudio

import (
	"bytes"
	"testing"
)

func TestIDRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"alsa name", append([]byte("hw:1,0"), make([]byte, 10)...), "68773a312c30"},
		{"binary", []byte{0x01, 0xff, 0x00, 0x02, 0x00, 0x00}, "01ff0002"},
		{"empty", make([]byte, 8), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := encodeID(tt.raw)
			if string(id) != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, id)
			}
			raw, err := decodeID(id)
			if err != nil {
				t.Fatalf("decodeID failed: %v", err)
			}
			if !bytes.Equal(raw, bytes.TrimRight(tt.raw, "\x00")) {
				t.Errorf("expected %x, got %x", tt.raw, raw)
			}
		})
	}
}

func TestDecodeIDInvalid(t *testing.T) {
	if _, err := decodeID("not-hex"); err == nil {
		t.Error("expected error for non hex id")
	}
}
