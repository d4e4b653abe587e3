// ABOUTME: Source interface and file opening by extension
// ABOUTME: Looping sources reopen the file at EOF
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
)

// ErrUnsupported is returned for files no decoder handles
var ErrUnsupported = errors.New("unsupported audio format")

// Source yields decoded audio
type Source interface {
	// Read fills dst with whole interleaved frames and returns the number of
	// samples written. It returns io.EOF once the stream is exhausted.
	Read(dst []float32) (int, error)

	// Format describes the decoded samples
	Format() audio.Format

	// Close releases the underlying file
	Close() error
}

// Open returns a Source for the file at path, chosen by extension. With loop
// set, the file restarts from the beginning instead of reporting io.EOF.
func Open(path string, loop bool) (Source, error) {
	open, err := opener(path)
	if err != nil {
		return nil, err
	}
	src, err := open()
	if err != nil {
		return nil, err
	}
	if !loop {
		return src, nil
	}
	return &looping{open: open, cur: src}, nil
}

func opener(path string) (func() (Source, error), error) {
	var decoder func(io.ReadCloser) (Source, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		decoder = NewMP3
	case ".flac":
		decoder = NewFLAC
	case ".wav":
		decoder = NewWAV
	default:
		return nil, fmt.Errorf("%w: %s (supported: .mp3, .flac, .wav)", ErrUnsupported, ext)
	}

	return func() (Source, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audio file: %w", err)
		}
		src, err := decoder(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return src, nil
	}, nil
}

// looping restarts its source at EOF
type looping struct {
	open func() (Source, error)
	cur  Source
}

func (l *looping) Read(dst []float32) (int, error) {
	n, err := l.cur.Read(dst)
	if !errors.Is(err, io.EOF) {
		return n, err
	}

	l.cur.Close()
	next, openErr := l.open()
	if openErr != nil {
		return n, fmt.Errorf("failed to restart audio file: %w", openErr)
	}
	l.cur = next
	return n, nil
}

func (l *looping) Format() audio.Format { return l.cur.Format() }

func (l *looping) Close() error { return l.cur.Close() }

// ReadFull reads from src until dst is full or src fails. It returns the
// number of samples read.
func ReadFull(src Source, dst []float32) (int, error) {
	ch := src.Format().Channels
	total := 0
	for total < len(dst) {
		n, err := src.Read(dst[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 && len(dst)-total < ch {
			break
		}
	}
	return total, nil
}
