// ABOUTME: Sentinel errors for device lifecycle and backend failures
// ABOUTME: Callers match them with errors.Is
package device

import "errors"

var (
	// ErrDeviceUnavailable is returned by Start when the device is not valid
	// or the backend could not open a stream for it.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrAlreadyRunning is returned by Start on a running device.
	ErrAlreadyRunning = errors.New("device already running")

	// ErrNotRunning reports a device that stopped while its caller still
	// needed it running, such as after the backend halted its stream.
	ErrNotRunning = errors.New("device not running")

	// ErrQueryFailed wraps a failed metadata query.
	ErrQueryFailed = errors.New("device query failed")

	// ErrBackendOpenFailed wraps the backend's error from opening a stream.
	ErrBackendOpenFailed = errors.New("backend open failed")

	// ErrBackendCloseFailed wraps the backend's error from closing a stream.
	ErrBackendCloseFailed = errors.New("backend close failed")

	// ErrDeviceClosed is returned by operations on a closed device.
	ErrDeviceClosed = errors.New("device closed")
)
