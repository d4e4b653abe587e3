// ABOUTME: Value types shared by devices and backends
// ABOUTME: Device IDs, directions, change kinds, stream configs and rate sets
package device

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
)

// ID identifies one backend device. The empty ID selects the backend's
// default device.
type ID string

// String returns the ID, or "default" for the empty ID
func (id ID) String() string {
	if id == "" {
		return "default"
	}
	return string(id)
}

// Direction is the flow of audio relative to the device
type Direction int

const (
	// DirectionInput is audio captured by the device
	DirectionInput Direction = iota
	// DirectionOutput is audio rendered by the device
	DirectionOutput
)

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ChangeKind names the device property a backend notification is about
type ChangeKind int

const (
	// ChangeStatus means the device appeared, disappeared or changed state
	ChangeStatus ChangeKind = iota
	// ChangeName means the display name changed
	ChangeName
	// ChangeManufacturer means the manufacturer string changed
	ChangeManufacturer
	// ChangeSampleRates means the native sample rate set changed
	ChangeSampleRates
	// ChangeInputConfig means the input stream configuration changed
	ChangeInputConfig
	// ChangeOutputConfig means the output stream configuration changed
	ChangeOutputConfig
	// ChangeStopped means the backend stopped the stream on its own
	ChangeStopped
)

var changeKindNames = [...]string{
	ChangeStatus:       "status",
	ChangeName:         "name",
	ChangeManufacturer: "manufacturer",
	ChangeSampleRates:  "sample-rates",
	ChangeInputConfig:  "input-config",
	ChangeOutputConfig: "output-config",
	ChangeStopped:      "stopped",
}

func (k ChangeKind) String() string {
	if k >= 0 && int(k) < len(changeKindNames) {
		return changeKindNames[k]
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// State is the lifecycle state of a Device
type State int

const (
	// StateConstructed is a device that is not running
	StateConstructed State = iota
	// StateRunning is a device exchanging audio with its backend
	StateRunning
	// StateClosed is terminal
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StreamConfig is a device's native stream configuration for one direction.
// A zero Channels count means the device has no stream in that direction.
type StreamConfig struct {
	Channels     int
	SampleRate   int
	SampleFormat audio.SampleFormat
	PeriodFrames int
}

// Format returns the configuration as an audio format
func (c StreamConfig) Format() audio.Format {
	return audio.Format{
		SampleRate:   c.SampleRate,
		Channels:     c.Channels,
		SampleFormat: c.SampleFormat,
	}
}

func (c StreamConfig) String() string {
	if c.Channels == 0 {
		return "none"
	}
	return fmt.Sprintf("%dch %dHz %s period=%d", c.Channels, c.SampleRate, c.SampleFormat, c.PeriodFrames)
}

// SampleRates is a sorted set of unique sample rates
type SampleRates []int

// NewSampleRates normalizes rates into a sorted set, dropping non-positive
// values and duplicates.
func NewSampleRates(rates ...int) SampleRates {
	out := make(SampleRates, 0, len(rates))
	for _, r := range rates {
		if r > 0 {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether rate is in the set
func (s SampleRates) Contains(rate int) bool {
	_, found := slices.BinarySearch(s, rate)
	return found
}

// Equal reports whether both sets hold the same rates
func (s SampleRates) Equal(other SampleRates) bool {
	return slices.Equal(s, other)
}

// Max returns the highest rate or 0 for an empty set
func (s SampleRates) Max() int {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func (s SampleRates) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		parts[i] = fmt.Sprint(r)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// StreamRequest is what a Device asks the backend to open
type StreamRequest struct {
	SampleRate     int
	InputChannels  int
	OutputChannels int
	PeriodFrames   int
}

func (r StreamRequest) String() string {
	return fmt.Sprintf("%dHz in=%d out=%d period=%d",
		r.SampleRate, r.InputChannels, r.OutputChannels, r.PeriodFrames)
}
