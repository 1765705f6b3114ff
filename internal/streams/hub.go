package streams

import (
	"context"
	"log/slog"
	"sync"
)

// subscriberBuffer is how many undelivered events a slow subscriber may hold
// before new ones are dropped for it.
const subscriberBuffer = 16

// Subscription receives a group's events until closed.
type Subscription struct {
	C     <-chan []byte
	ch    chan []byte
	group string
	hub   *Hub
	once  sync.Once
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub is the in-process channel layer.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Subscription]struct{}
	log    *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{groups: make(map[string]map[*Subscription]struct{}), log: log}
}

// Subscribe joins group.
func (h *Hub) Subscribe(group string) *Subscription {
	ch := make(chan []byte, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, group: group, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Subscription]struct{})
		h.groups[group] = members
	}
	members[sub] = struct{}{}
	return sub
}

// Publish delivers payload to every current member of group.
func (h *Hub) Publish(_ context.Context, group string, payload []byte) error {
	h.deliver(group, payload)
	return nil
}

// Members reports how many subscriptions group has.
func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func (h *Hub) deliver(group string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.groups[group] {
		select {
		case sub.ch <- payload:
		default:
			h.log.Warn("Dropping event for slow subscriber", "group", group)
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[sub.group]
	delete(members, sub)
	if len(members) == 0 {
		delete(h.groups, sub.group)
	}
	close(sub.ch)
}
