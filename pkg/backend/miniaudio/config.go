// ABOUTME: Configuration and build independent helpers for the miniaudio backend
// ABOUTME: Device IDs are the hex encoding of miniaudio's opaque device IDs
package miniaudio

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// ErrUnavailable is returned by New in builds without cgo or with the
// noaudio tag.
var ErrUnavailable = errors.New("miniaudio backend not available in this build")

// Config configures the backend
type Config struct {
	Log slog.Logger

	// PollInterval is how often device state is compared for change
	// notifications. Zero selects notify.DefaultPollInterval.
	PollInterval time.Duration
}

func (c Config) logger() slog.Logger {
	if c.Log == nil {
		return slog.Disabled
	}
	return c.Log
}

// fallbackRates is reported when miniaudio leaves a device's native rates
// open.
var fallbackRates = []int{44100, 48000}

// encodeID turns a raw miniaudio device ID into a device.ID
func encodeID(raw []byte) device.ID {
	// IDs are fixed size and zero padded.
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return device.ID(hex.EncodeToString(raw[:end]))
}

// decodeID returns the raw bytes behind a device.ID
func decodeID(id device.ID) ([]byte, error) {
	raw, err := hex.DecodeString(string(id))
	if err != nil {
		return nil, fmt.Errorf("invalid miniaudio device id %q: %w", id, err)
	}
	return raw, nil
}
