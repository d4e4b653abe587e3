// ABOUTME: Backend adapter contract a Device depends on
// ABOUTME: Opens streams, answers metadata queries and publishes change notifications
package device

// DataProc is the real-time audio callback. out holds frames*outputChannels
// samples to be filled and in holds frames*inputChannels captured samples.
// Either slice is empty when the stream has no channels in that direction.
// Samples are interleaved float32 in [-1, 1].
type DataProc func(out, in []float32, frames int)

// Stream is an open backend stream
type Stream interface {
	// Close stops the stream. It must not return until the DataProc can no
	// longer be invoked.
	Close() error
}

// StopReporter is implemented by streams that know whether the backend
// stopped them on its own. ChangeStopped is published per device ID, so a
// device only treats it as its own stop when its stream reports stopped.
// Streams without it are assumed stopped on every ChangeStopped.
type StopReporter interface {
	Stopped() bool
}

// Subscription is a registration for change notifications
type Subscription interface {
	// Cancel stops delivery. It is safe to call more than once.
	Cancel()
}

// Backend is the platform specific side of a device
type Backend interface {
	// Name identifies the backend in logs
	Name() string

	// Open starts a stream on the device and begins invoking proc from the
	// backend's own audio thread.
	Open(id ID, req StreamRequest, proc DataProc) (Stream, error)

	// QueryStatus reports whether the device is present and usable
	QueryStatus(id ID) (bool, error)

	// QueryName returns the display name
	QueryName(id ID) (string, error)

	// QueryManufacturer returns the manufacturer string
	QueryManufacturer(id ID) (string, error)

	// QueryNativeSampleRates returns the rates the hardware supports
	QueryNativeSampleRates(id ID) ([]int, error)

	// QueryStreamConfig returns the native configuration for one direction
	QueryStreamConfig(id ID, dir Direction) (StreamConfig, error)

	// Subscribe registers onChange for notifications about the device.
	// onChange may be called from any goroutine.
	Subscribe(id ID, onChange func(ChangeKind)) (Subscription, error)
}
