// ABOUTME: Polling change detector for backends without native notifications
// ABOUTME: Compares periodic device snapshots and publishes the differences
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// DefaultPollInterval is how often a Poller samples devices
const DefaultPollInterval = 500 * time.Millisecond

// Snapshot is the observable state of one device
type Snapshot struct {
	Present      bool
	Name         string
	Manufacturer string
	Rates        device.SampleRates
	Input        device.StreamConfig
	Output       device.StreamConfig
}

// Diff returns the change kinds that turn old into cur
func Diff(old, cur Snapshot) []device.ChangeKind {
	var kinds []device.ChangeKind
	if old.Present != cur.Present {
		kinds = append(kinds, device.ChangeStatus)
	}
	if old.Name != cur.Name {
		kinds = append(kinds, device.ChangeName)
	}
	if old.Manufacturer != cur.Manufacturer {
		kinds = append(kinds, device.ChangeManufacturer)
	}
	if !old.Rates.Equal(cur.Rates) {
		kinds = append(kinds, device.ChangeSampleRates)
	}
	if old.Input != cur.Input {
		kinds = append(kinds, device.ChangeInputConfig)
	}
	if old.Output != cur.Output {
		kinds = append(kinds, device.ChangeOutputConfig)
	}
	return kinds
}

// SnapshotFunc reads the current state of a device
type SnapshotFunc func(id device.ID) (Snapshot, error)

// Poller samples every subscribed device of a Hub and publishes changes
type Poller struct {
	hub      *Hub
	snapshot SnapshotFunc
	interval time.Duration
	log      slog.Logger

	mu   sync.Mutex
	last map[device.ID]Snapshot
}

// NewPoller creates a poller. A zero interval uses DefaultPollInterval.
func NewPoller(hub *Hub, interval time.Duration, snapshot SnapshotFunc, log slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = slog.Disabled
	}
	return &Poller{
		hub:      hub,
		snapshot: snapshot,
		interval: interval,
		log:      log,
		last:     make(map[device.ID]Snapshot),
	}
}

// Run polls until ctx is done
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll samples each subscribed device once. The first sample of a device
// only establishes the baseline.
func (p *Poller) Poll() {
	ids := p.hub.IDs()

	for _, id := range ids {
		cur, err := p.snapshot(id)
		if err != nil {
			p.log.Tracef("Snapshot of %s failed: %v", id, err)
			cur = Snapshot{}
		}

		p.mu.Lock()
		old, seen := p.last[id]
		p.last[id] = cur
		p.mu.Unlock()

		if !seen {
			continue
		}
		for _, kind := range Diff(old, cur) {
			p.log.Debugf("Device %s changed: %s", id, kind)
			p.hub.Publish(id, kind)
		}
	}

	// Forget devices nobody watches any more.
	p.mu.Lock()
	for id := range p.last {
		if p.hub.Count(id) == 0 {
			delete(p.last, id)
		}
	}
	p.mu.Unlock()
}
