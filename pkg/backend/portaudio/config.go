// ABOUTME: Configuration shared by the PortAudio backend and its stub
// ABOUTME: Lists the standard rates probed when asking for native rates
package portaudio

import (
	"errors"
	"time"

	"github.com/decred/slog"
)

// ErrUnavailable is returned by New in builds without the portaudio tag
var ErrUnavailable = errors.New("PortAudio support not enabled (build with -tags portaudio)")

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

// standardRates are probed with IsFormatSupported
var standardRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000}
