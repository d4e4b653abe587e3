// ABOUTME: Fan-out of device change notifications to subscribers
// ABOUTME: Subscriptions are keyed by UUID so cancellation is O(1) and idempotent
package notify

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// Hub delivers change notifications to the subscribers of each device
type Hub struct {
	mu   sync.Mutex
	subs map[device.ID]map[uuid.UUID]func(device.ChangeKind)
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subs: make(map[device.ID]map[uuid.UUID]func(device.ChangeKind)),
	}
}

// Subscribe registers fn for changes on id
func (h *Hub) Subscribe(id device.ID, fn func(device.ChangeKind)) device.Subscription {
	key := uuid.New()

	h.mu.Lock()
	byKey, ok := h.subs[id]
	if !ok {
		byKey = make(map[uuid.UUID]func(device.ChangeKind))
		h.subs[id] = byKey
	}
	byKey[key] = fn
	h.mu.Unlock()

	return &subscription{hub: h, id: id, key: key}
}

// Publish calls every subscriber of id with kind and returns how many were
// called. Subscribers run on the calling goroutine, outside the hub lock.
func (h *Hub) Publish(id device.ID, kind device.ChangeKind) int {
	h.mu.Lock()
	fns := make([]func(device.ChangeKind), 0, len(h.subs[id]))
	for _, fn := range h.subs[id] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
	return len(fns)
}

// Count returns the number of subscribers of id
func (h *Hub) Count(id device.ID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[id])
}

// IDs returns the devices that have at least one subscriber
func (h *Hub) IDs() []device.ID {
	h.mu.Lock()
	ids := make([]device.ID, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	slices.Sort(ids)
	return ids
}

func (h *Hub) remove(id device.ID, key uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byKey := h.subs[id]
	delete(byKey, key)
	if len(byKey) == 0 {
		delete(h.subs, id)
	}
}

type subscription struct {
	hub  *Hub
	id   device.ID
	key  uuid.UUID
	once sync.Once
}

func (s *subscription) Cancel() {
	s.once.Do(func() { s.hub.remove(s.id, s.key) })
}
