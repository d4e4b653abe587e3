// ABOUTME: Logical audio device with lifecycle control and a real-time I/O bridge
// ABOUTME: Hides platform backends behind one object and hands audio to a delegate
// Package device models a single logical audio input/output device.
//
// A Device is bound to one backend device ID. It caches the device metadata
// (name, manufacturer, native sample rates and per-direction stream
// configuration), keeps that cache current from backend change
// notifications, and bridges the backend's real-time audio callback to a
// caller-supplied Delegate through a per-direction format converter.
//
// The callback path never blocks on the control path. It only try-acquires
// the locks it needs and falls back to silence for that cycle when they are
// contended. Stop blocks until no callback can still be running.
//
// Example:
//
//	dev, err := device.New("", backend, device.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	dev.SetDelegate(myDelegate)
//	if err := dev.Start(); err != nil {
//	    return err
//	}
package device
