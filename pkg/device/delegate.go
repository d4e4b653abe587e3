// ABOUTME: Delegate contract the device calls from its audio path
// ABOUTME: DelegateFuncs adapts plain functions to the interface
package device

import "github.com/Resonate-Protocol/sounddevice/pkg/audio"

// Delegate produces and consumes a device's audio.
//
// PullSamples and PushSamples run on the backend's real-time thread and must
// not block. StatusChanged runs on whatever goroutine delivered the backend
// notification.
type Delegate interface {
	// PullSamples returns frames frames of output audio in format. The
	// device copies the buffer before the next call, so it may be reused.
	PullSamples(frames int, format audio.Format) (audio.SampleBuffer, error)

	// PushSamples receives captured audio. buf is only valid during the call.
	PushSamples(buf audio.SampleBuffer)

	// StatusChanged reports a device change after the cached state has been
	// refreshed.
	StatusChanged(kind ChangeKind)
}

// DelegateFuncs implements Delegate with optional functions. A nil Pull
// yields silence and nil Push or Status are no-ops.
type DelegateFuncs struct {
	Pull   func(frames int, format audio.Format) (audio.SampleBuffer, error)
	Push   func(buf audio.SampleBuffer)
	Status func(kind ChangeKind)
}

// PullSamples implements Delegate
func (f DelegateFuncs) PullSamples(frames int, format audio.Format) (audio.SampleBuffer, error) {
	if f.Pull == nil {
		return audio.NewSampleBuffer(format, frames), nil
	}
	return f.Pull(frames, format)
}

// PushSamples implements Delegate
func (f DelegateFuncs) PushSamples(buf audio.SampleBuffer) {
	if f.Push != nil {
		f.Push(buf)
	}
}

// StatusChanged implements Delegate
func (f DelegateFuncs) StatusChanged(kind ChangeKind) {
	if f.Status != nil {
		f.Status(kind)
	}
}
