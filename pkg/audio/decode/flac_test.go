// ABOUTME: Tests for FLAC decoder
// ABOUTME: Tests rejection of non FLAC data and decoding of hand built frames
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
)

func flacCRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func flacCRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x8005
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// testFLAC builds a 48 kHz 16-bit stereo stream of blocks of 64 frames. The
// left channel is a constant subframe and the right channel is verbatim.
func testFLAC(left int16, right [][]int16) []byte {
	const blockSize = 64

	var buf bytes.Buffer
	buf.WriteString("fLaC")

	// STREAMINFO, the last metadata block, 34 bytes.
	buf.Write([]byte{0x80, 0x00, 0x00, 34})
	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:], blockSize)
	binary.BigEndian.PutUint16(info[2:], blockSize)
	total := uint64(len(right) * blockSize)
	packed := uint64(48000)<<44 | uint64(2-1)<<41 | uint64(16-1)<<36 | total
	binary.BigEndian.PutUint64(info[10:], packed)
	buf.Write(info)

	for n, samples := range right {
		// Fixed blocking, block size in 8 bits after the header, 48 kHz,
		// independent stereo, 16 bits per sample.
		frame := []byte{0xFF, 0xF8, 0x6A, 0x18, byte(n), blockSize - 1}
		frame = append(frame, flacCRC8(frame))

		frame = append(frame, 0x00)
		frame = binary.BigEndian.AppendUint16(frame, uint16(left))

		frame = append(frame, 0x02)
		for _, s := range samples {
			frame = binary.BigEndian.AppendUint16(frame, uint16(s))
		}

		frame = binary.BigEndian.AppendUint16(frame, flacCRC16(frame))
		buf.Write(frame)
	}
	return buf.Bytes()
}

func TestNewFLAC_InvalidSignature(t *testing.T) {
	src, err := NewFLAC(io.NopCloser(bytes.NewReader([]byte("RIFF....WAVEfmt "))))
	if err == nil {
		t.Fatal("expected error for non FLAC data, got nil")
	}
	if src != nil {
		t.Fatal("expected decoder to be nil on error")
	}
}

func TestFLACDecode(t *testing.T) {
	const left = 8192
	right := make([][]int16, 2)
	for b := range right {
		right[b] = make([]int16, 64)
		for i := range right[b] {
			right[b][i] = int16((b*64+i)*100 - 6400)
		}
	}

	src, err := NewFLAC(io.NopCloser(bytes.NewReader(testFLAC(left, right))))
	if err != nil {
		t.Fatalf("NewFLAC failed: %v", err)
	}
	defer src.Close()

	want := audio.Format{SampleRate: 48000, Channels: 2, SampleFormat: audio.SampleFormatS16}
	if src.Format() != want {
		t.Fatalf("expected format %v, got %v", want, src.Format())
	}

	// Reads of 50 frames straddle the block boundary.
	var got []float32
	dst := make([]float32, 50*2)
	for {
		n, err := src.Read(dst)
		got = append(got, dst[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}

	if len(got) != 128*2 {
		t.Fatalf("expected %d samples, got %d", 128*2, len(got))
	}
	for i := 0; i < 128; i++ {
		if got[i*2] != 0.25 {
			t.Fatalf("frame %d: left is %v, expected 0.25", i, got[i*2])
		}
		wantRight := float32(i*100-6400) / 32768
		if got[i*2+1] != wantRight {
			t.Fatalf("frame %d: right is %v, expected %v", i, got[i*2+1], wantRight)
		}
	}
}
