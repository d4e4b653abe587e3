// ABOUTME: Functional options for device construction
// ABOUTME: Logger, stream request, delegate format and CPU smoothing settings
package device

import (
	"github.com/decred/slog"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/resample"
)

const (
	// DefaultCPUSmoothing is the EMA weight of each new CPU usage sample
	DefaultCPUSmoothing = 0.1

	// DefaultPeriodFrames is requested when the device reports no period
	DefaultPeriodFrames = 512

	// DefaultSampleRate is used when the device reports no rate at all
	DefaultSampleRate = 48000
)

type config struct {
	log          slog.Logger
	cpuAlpha     float64
	sampleRate   int
	periodFrames int
	blockFrames  int
	delegateFmt  audio.Format
	quality      resample.Quality
}

func defaultConfig() config {
	return config{
		log:      slog.Disabled,
		cpuAlpha: DefaultCPUSmoothing,
		quality:  resample.QualityBest,
	}
}

// Option configures a Device
type Option func(*config)

// WithLogger sets the device logger
func WithLogger(log slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCPUSmoothing sets the weight of each new sample in the averaged CPU
// usage. Values outside (0, 1] are ignored.
func WithCPUSmoothing(alpha float64) Option {
	return func(c *config) {
		if alpha > 0 && alpha <= 1 {
			c.cpuAlpha = alpha
		}
	}
}

// WithSampleRate asks the backend for a specific device rate instead of the
// device's configured rate.
func WithSampleRate(rate int) Option {
	return func(c *config) { c.sampleRate = rate }
}

// WithPeriodFrames asks the backend for a specific callback period
func WithPeriodFrames(frames int) Option {
	return func(c *config) { c.periodFrames = frames }
}

// WithBlockFrames sets the block size exchanged with the delegate when
// resampling. It defaults to the stream period.
func WithBlockFrames(frames int) Option {
	return func(c *config) { c.blockFrames = frames }
}

// WithDelegateFormat sets the rate and channel count the delegate works in.
// Zero fields follow the device.
func WithDelegateFormat(format audio.Format) Option {
	return func(c *config) { c.delegateFmt = format }
}

// WithResampleQuality selects the resampler used when the delegate rate
// differs from the device rate.
func WithResampleQuality(q resample.Quality) Option {
	return func(c *config) { c.quality = q }
}
