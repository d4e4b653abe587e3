// ABOUTME: Metadata refresh and backend change notification handling
// ABOUTME: Each refresh updates one cached field without touching the audio path
package device

import (
	"fmt"
	"sync/atomic"
)

func queryError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrQueryFailed, what, err)
}

// RefreshStatus re-queries whether the device is present. A failed query
// marks the device invalid.
func (d *Device) RefreshStatus() error {
	b := d.bind.Load()
	ok, err := b.backend.QueryStatus(b.id)
	if err != nil {
		d.valid.Store(false)
		return queryError("status", err)
	}
	d.valid.Store(ok)
	return nil
}

// RefreshName re-queries the display name
func (d *Device) RefreshName() error {
	b := d.bind.Load()
	name, err := b.backend.QueryName(b.id)
	if err != nil {
		return queryError("name", err)
	}
	d.name.Store(&name)
	return nil
}

// RefreshManufacturer re-queries the manufacturer string
func (d *Device) RefreshManufacturer() error {
	b := d.bind.Load()
	m, err := b.backend.QueryManufacturer(b.id)
	if err != nil {
		return queryError("manufacturer", err)
	}
	d.manufacturer.Store(&m)
	return nil
}

// RefreshNativeSampleRates re-queries the native sample rate set
func (d *Device) RefreshNativeSampleRates() error {
	b := d.bind.Load()
	rates, err := b.backend.QueryNativeSampleRates(b.id)
	if err != nil {
		return queryError("sample rates", err)
	}
	set := NewSampleRates(rates...)
	d.rates.Store(&set)
	return nil
}

// RefreshInputStreamConfiguration re-queries the input configuration
func (d *Device) RefreshInputStreamConfiguration() error {
	return d.refreshStreamConfig(DirectionInput, &d.inputCfg)
}

// RefreshOutputStreamConfiguration re-queries the output configuration
func (d *Device) RefreshOutputStreamConfiguration() error {
	return d.refreshStreamConfig(DirectionOutput, &d.outputCfg)
}

func (d *Device) refreshStreamConfig(dir Direction, dst *atomic.Pointer[StreamConfig]) error {
	b := d.bind.Load()
	cfg, err := b.backend.QueryStreamConfig(b.id, dir)
	if err != nil {
		return queryError(dir.String()+" config", err)
	}
	dst.Store(&cfg)
	return nil
}

// InitializeDeviceData runs every refresh and makes sure the device is
// subscribed to change notifications. It reports whether all of them
// succeeded; on failure the cache holds whatever could be queried.
func (d *Device) InitializeDeviceData() bool {
	d.ctrlMu.Lock()
	defer d.ctrlMu.Unlock()

	if d.closed.Load() {
		return false
	}
	return d.initializeLocked()
}

func (d *Device) initializeLocked() bool {
	b := d.bind.Load()
	ok := true

	refreshes := []func() error{
		d.RefreshStatus,
		d.RefreshName,
		d.RefreshManufacturer,
		d.RefreshNativeSampleRates,
		d.RefreshInputStreamConfiguration,
		d.RefreshOutputStreamConfiguration,
	}
	for _, refresh := range refreshes {
		if err := refresh(); err != nil {
			d.log.Debugf("Device %s: %v", b.id, err)
			ok = false
		}
	}

	if d.sub == nil {
		gen := b.gen
		sub, err := b.backend.Subscribe(b.id, func(kind ChangeKind) {
			d.handleChange(gen, kind)
		})
		if err != nil {
			d.log.Warnf("Unable to subscribe to %s changes: %v", b.id, err)
			ok = false
		} else {
			d.sub = sub
		}
	}

	return ok
}

// handleChange runs the refresh matching kind and then tells the delegate.
func (d *Device) handleChange(gen uint64, kind ChangeKind) {
	b := d.bind.Load()
	if d.closed.Load() || b.gen != gen {
		return
	}

	var err error
	switch kind {
	case ChangeStatus:
		err = d.RefreshStatus()
	case ChangeName:
		err = d.RefreshName()
	case ChangeManufacturer:
		err = d.RefreshManufacturer()
	case ChangeSampleRates:
		err = d.RefreshNativeSampleRates()
	case ChangeInputConfig:
		err = d.RefreshInputStreamConfiguration()
		d.resetPending.Store(true)
	case ChangeOutputConfig:
		err = d.RefreshOutputStreamConfiguration()
		d.resetPending.Store(true)
	case ChangeStopped:
		if !d.ownStreamStopped() {
			d.log.Debugf("Ignoring stop of another stream on %s", b.id)
			return
		}
		if d.running.CompareAndSwap(true, false) {
			d.log.Infof("Backend stopped the stream of %s", b.id)
		}
	default:
		d.log.Debugf("Ignoring unknown change %v on %s", kind, b.id)
		return
	}
	if err != nil {
		d.log.Warnf("Refresh after %s change on %s failed: %v", kind, b.id, err)
	}

	d.notifyDelegate(kind)
}

// ownStreamStopped reports whether a ChangeStopped notification is about
// the device's current stream.
func (d *Device) ownStreamStopped() bool {
	live := d.live.Load()
	if live == nil {
		return false
	}
	if r, ok := live.Stream.(StopReporter); ok {
		return r.Stopped()
	}
	return true
}

func (d *Device) notifyDelegate(kind ChangeKind) {
	del := d.Delegate()
	if del == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("Delegate status handler panicked on %s change: %v", kind, r)
		}
	}()
	del.StatusChanged(kind)
}
