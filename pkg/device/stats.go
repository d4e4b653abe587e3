// ABOUTME: Counters describing the health of the audio callback
// ABOUTME: Written by the callback path and read as a snapshot
package device

import "sync/atomic"

type counters struct {
	callbacks      atomic.Uint64
	fallbacks      atomic.Uint64
	delegateErrors atomic.Uint64
	guardMisses    atomic.Uint64
}

// Stats is a snapshot of the callback counters since construction
type Stats struct {
	// Callbacks counts callbacks that reached the delegate stage
	Callbacks uint64
	// Fallbacks counts callbacks answered with silence instead of delegate
	// audio
	Fallbacks uint64
	// DelegateErrors counts delegate failures and panics
	DelegateErrors uint64
	// GuardMisses counts callbacks that found a lock held by the control
	// path
	GuardMisses uint64
}

// Stats returns the current callback counters
func (d *Device) Stats() Stats {
	return Stats{
		Callbacks:      d.stats.callbacks.Load(),
		Fallbacks:      d.stats.fallbacks.Load(),
		DelegateErrors: d.stats.delegateErrors.Load(),
		GuardMisses:    d.stats.guardMisses.Load(),
	}
}
