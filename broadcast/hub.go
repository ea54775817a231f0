// Package broadcast fans live download events out to dashboard viewers.
package broadcast

import (
	"sync"

	"mediaserver/logger"
	"mediaserver/metrics"
	"mediaserver/types"
)

// InboxSize is the number of undelivered events a subscriber may hold
// before it is considered dead and evicted.
const InboxSize = 10

// Announcer is the producer side of the hub
type Announcer interface {
	Announce(event types.Event)
}

// Hub keeps the set of live subscriber inboxes. Nothing is retained
// between announcements.
type Hub struct {
	mu        sync.Mutex
	listeners []chan types.Event
	log       logger.Logger
	metrics   *metrics.Metrics
}

// NewHub creates an empty hub
func NewHub(log logger.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{log: log, metrics: m}
}

// Subscribe registers a new inbox. The caller must keep draining it; the
// hub closes it on eviction or Unsubscribe.
func (h *Hub) Subscribe() <-chan types.Event {
	inbox := make(chan types.Event, InboxSize)

	h.mu.Lock()
	h.listeners = append(h.listeners, inbox)
	count := len(h.listeners)
	h.mu.Unlock()

	h.metrics.SetSubscribers(count)
	return inbox
}

// Unsubscribe removes and closes inbox. Unknown or already evicted inboxes
// are ignored.
func (h *Hub) Unsubscribe(inbox <-chan types.Event) {
	h.mu.Lock()
	for i, l := range h.listeners {
		if l == inbox {
			h.remove(i)
			break
		}
	}
	count := len(h.listeners)
	h.mu.Unlock()

	h.metrics.SetSubscribers(count)
}

// Announce delivers event to every registered inbox without blocking.
// A full inbox is evicted.
func (h *Hub) Announce(event types.Event) {
	h.mu.Lock()
	evicted := 0
	for i := len(h.listeners) - 1; i >= 0; i-- {
		select {
		case h.listeners[i] <- event:
		default:
			h.remove(i)
			evicted++
		}
	}
	count := len(h.listeners)
	h.mu.Unlock()

	h.metrics.EventAnnounced(string(event.Type))
	if evicted > 0 {
		h.log.Warn("Evicted unresponsive event subscribers",
			logger.Int("evicted", evicted),
			logger.Int("remaining", count),
		)
		for range evicted {
			h.metrics.SubscriberEvicted()
		}
		h.metrics.SetSubscribers(count)
	}
}

// ListenerCount returns the number of registered inboxes
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// remove closes and drops listener i. Callers hold mu.
func (h *Hub) remove(i int) {
	close(h.listeners[i])
	h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
}
