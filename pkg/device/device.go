// ABOUTME: Device lifecycle: construction, start/stop, delegate binding and copies
// ABOUTME: Serializes control operations while keeping the audio path lock-free
package device

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/decred/slog"
)

// binding ties a Device to one backend device. It is replaced as a whole by
// Assign, and gen lets late notifications from an old binding be dropped.
type binding struct {
	id      ID
	backend Backend
	gen     uint64
}

type liveStream struct{ Stream }

// Device is one logical audio device. All methods are safe for concurrent
// use.
type Device struct {
	cfg config
	log slog.Logger

	bind atomic.Pointer[binding]

	// ctrlMu serializes Start, Stop, Close, Assign and subscription
	// management. The audio callback never takes it.
	ctrlMu sync.Mutex
	stream Stream
	sub    Subscription

	// live mirrors stream for notification handlers, which cannot take
	// ctrlMu.
	live atomic.Pointer[liveStream]

	// ioMu is the I/O guard over the delegate binding. The callback only
	// try-acquires it.
	ioMu     sync.Mutex
	delegate Delegate

	// streamMu is read-held by the callback while it uses io and
	// write-held by the control path to install or drain io.
	streamMu sync.RWMutex
	io       *ioState

	stopping     atomic.Bool
	resetPending atomic.Bool
	running      atomic.Bool
	closed       atomic.Bool
	valid        atomic.Bool

	name         atomic.Pointer[string]
	manufacturer atomic.Pointer[string]
	rates        atomic.Pointer[SampleRates]
	inputCfg     atomic.Pointer[StreamConfig]
	outputCfg    atomic.Pointer[StreamConfig]

	cpu   *cpuMeter
	stats counters
}

func newDevice(cfg config) *Device {
	d := &Device{
		cfg: cfg,
		log: cfg.log,
		cpu: newCPUMeter(cfg.cpuAlpha),
	}
	d.resetMetadata()
	return d
}

// New creates a device bound to id on backend and queries all of its
// metadata. Query failures do not fail construction; they leave the device
// invalid or with empty cached fields.
func New(id ID, backend Backend, opts ...Option) (*Device, error) {
	if backend == nil {
		return nil, errors.New("device: nil backend")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	d := newDevice(cfg)
	d.bind.Store(&binding{id: id, backend: backend, gen: 1})

	d.ctrlMu.Lock()
	if !d.initializeLocked() {
		d.log.Warnf("Device %s on %s initialized with errors", id, backend.Name())
	}
	d.ctrlMu.Unlock()

	return d, nil
}

func (d *Device) resetMetadata() {
	empty := ""
	d.valid.Store(false)
	d.name.Store(&empty)
	d.manufacturer.Store(&empty)
	d.rates.Store(&SampleRates{})
	d.inputCfg.Store(&StreamConfig{})
	d.outputCfg.Store(&StreamConfig{})
}

// SetDelegate replaces the delegate. A callback in flight keeps using the
// delegate it already picked up; every later callback sees the new one.
func (d *Device) SetDelegate(del Delegate) {
	d.ioMu.Lock()
	d.delegate = del
	d.ioMu.Unlock()
}

// Delegate returns the current delegate
func (d *Device) Delegate() Delegate {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()
	return d.delegate
}

// Start opens the backend stream and begins exchanging audio with the
// delegate.
func (d *Device) Start() error {
	d.ctrlMu.Lock()
	defer d.ctrlMu.Unlock()
	return d.startLocked()
}

func (d *Device) startLocked() error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}
	if d.running.Load() {
		return ErrAlreadyRunning
	}
	if d.stream != nil {
		// The backend stopped the previous stream on its own.
		if err := d.stopLocked(); err != nil {
			d.log.Warnf("Releasing stopped stream: %v", err)
		}
	}

	b := d.bind.Load()
	if !d.valid.Load() {
		return fmt.Errorf("%w: %s is not present", ErrDeviceUnavailable, b.id)
	}

	req, st, err := d.prepareIO()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	d.streamMu.Lock()
	d.io = st
	d.streamMu.Unlock()

	stream, err := b.backend.Open(b.id, req, d.process)
	if err != nil {
		d.streamMu.Lock()
		d.io = nil
		d.streamMu.Unlock()
		return fmt.Errorf("%w: %w: %w", ErrDeviceUnavailable, ErrBackendOpenFailed, err)
	}

	d.stream = stream
	d.live.Store(&liveStream{stream})
	d.running.Store(true)
	d.log.Infof("Started %s on %s (%s)", b.id, b.backend.Name(), req)
	return nil
}

// Stop closes the backend stream. It returns only once no callback can be
// running and is a no-op on a stopped device.
func (d *Device) Stop() error {
	d.ctrlMu.Lock()
	defer d.ctrlMu.Unlock()
	return d.stopLocked()
}

func (d *Device) stopLocked() error {
	if d.stream == nil {
		return nil
	}

	d.stopping.Store(true)
	err := d.stream.Close()
	d.stream = nil
	d.live.Store(nil)

	// Drain a callback that is still inside the bridge.
	d.streamMu.Lock()
	if d.io != nil {
		d.io.reset()
		d.io = nil
	}
	d.streamMu.Unlock()

	d.stopping.Store(false)
	d.running.Store(false)

	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendCloseFailed, err)
	}
	d.log.Debugf("Stopped %s", d.bind.Load().id)
	return nil
}

// Close stops the device and cancels its change subscription. A closed
// device cannot be started again.
func (d *Device) Close() error {
	d.ctrlMu.Lock()
	defer d.ctrlMu.Unlock()

	if d.closed.Load() {
		return nil
	}
	err := d.stopLocked()
	if d.sub != nil {
		d.sub.Cancel()
		d.sub = nil
	}
	d.closed.Store(true)
	return err
}

// Clone creates a new device bound to the same backend device with the same
// options and delegate. The clone queries its own metadata and, if d is
// running, opens its own stream. If that start fails the clone is returned
// along with the error and must still be closed.
func (d *Device) Clone() (*Device, error) {
	if d.closed.Load() {
		return nil, ErrDeviceClosed
	}

	b := d.bind.Load()
	c := newDevice(d.cfg)
	c.bind.Store(&binding{id: b.id, backend: b.backend, gen: 1})

	c.ctrlMu.Lock()
	if !c.initializeLocked() {
		c.log.Warnf("Clone of %s initialized with errors", b.id)
	}
	c.ctrlMu.Unlock()

	c.SetDelegate(d.Delegate())

	if d.IsRunning() {
		if err := c.Start(); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Assign rebinds d to the backend device of other. d is stopped, re-queried
// and takes over other's delegate, and is started again if other is
// running.
func (d *Device) Assign(other *Device) error {
	if other == d {
		return nil
	}

	d.ctrlMu.Lock()
	defer d.ctrlMu.Unlock()

	if d.closed.Load() {
		return ErrDeviceClosed
	}

	stopErr := d.stopLocked()
	if d.sub != nil {
		d.sub.Cancel()
		d.sub = nil
	}

	ob := other.bind.Load()
	old := d.bind.Load()
	d.bind.Store(&binding{id: ob.id, backend: ob.backend, gen: old.gen + 1})

	d.resetMetadata()
	if !d.initializeLocked() {
		d.log.Warnf("Device %s initialized with errors after assignment", ob.id)
	}

	d.SetDelegate(other.Delegate())

	if other.IsRunning() {
		if err := d.startLocked(); err != nil {
			return err
		}
	}
	return stopErr
}

// ID returns the backend device ID
func (d *Device) ID() ID { return d.bind.Load().id }

// Backend returns the backend the device is bound to
func (d *Device) Backend() Backend { return d.bind.Load().backend }

// IsRunning reports whether audio is being exchanged with the backend
func (d *Device) IsRunning() bool { return d.running.Load() }

// IsValid reports whether the backend last reported the device as present
func (d *Device) IsValid() bool { return d.valid.Load() }

// State returns the lifecycle state
func (d *Device) State() State {
	switch {
	case d.closed.Load():
		return StateClosed
	case d.running.Load():
		return StateRunning
	default:
		return StateConstructed
	}
}

// Name returns the cached display name
func (d *Device) Name() string { return *d.name.Load() }

// Manufacturer returns the cached manufacturer string
func (d *Device) Manufacturer() string { return *d.manufacturer.Load() }

// NativeSampleRates returns a copy of the cached native sample rates
func (d *Device) NativeSampleRates() SampleRates {
	return slices.Clone(*d.rates.Load())
}

// InputStreamConfig returns the cached input configuration
func (d *Device) InputStreamConfig() StreamConfig { return *d.inputCfg.Load() }

// OutputStreamConfig returns the cached output configuration
func (d *Device) OutputStreamConfig() StreamConfig { return *d.outputCfg.Load() }

// NumInputChannels returns the cached input channel count
func (d *Device) NumInputChannels() int { return d.InputStreamConfig().Channels }

// NumOutputChannels returns the cached output channel count
func (d *Device) NumOutputChannels() int { return d.OutputStreamConfig().Channels }

// CPUUsage returns the load of the most recent callback as a fraction of
// its period
func (d *Device) CPUUsage() float64 { return d.cpu.Instant() }

// AverageCPUUsage returns the smoothed callback load
func (d *Device) AverageCPUUsage() float64 { return d.cpu.Average() }
