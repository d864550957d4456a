package sensor

import (
	"sort"
	"sync"
	"time"
)

// Hub is the listener registry shared by every source. Dispatch delivers a
// sample to each listener in subscription order.
type Hub struct {
	mu        sync.Mutex
	listeners map[Subscription]Listener
	next      Subscription
	interval  time.Duration
	latest    Sample
	hasLatest bool
}

// NewHub creates a Hub with the default update interval.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[Subscription]Listener),
		interval:  DefaultUpdateInterval,
	}
}

// Subscribe registers l and returns its handle.
func (h *Hub) Subscribe(l Listener) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.listeners[h.next] = l
	return h.next
}

// Unsubscribe removes a listener. Unknown handles are ignored.
func (h *Hub) Unsubscribe(s Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, s)
}

// RemoveAllListeners drops every listener.
func (h *Hub) RemoveAllListeners() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.listeners)
}

// ListenerCount returns the number of registered listeners.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// SetUpdateInterval changes the delivery cadence. Non-positive values are
// ignored.
func (h *Hub) SetUpdateInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	h.mu.Lock()
	h.interval = d
	h.mu.Unlock()
}

// UpdateInterval returns the current delivery cadence.
func (h *Hub) UpdateInterval() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interval
}

// Latest returns the most recently dispatched sample.
func (h *Hub) Latest() (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.hasLatest
}

// Dispatch caches s and hands it to every listener. The lock is released
// before listeners run so they may unsubscribe themselves.
func (h *Hub) Dispatch(s Sample) {
	h.mu.Lock()
	h.latest = s
	h.hasLatest = true
	ids := make([]Subscription, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ls := make([]Listener, len(ids))
	for i, id := range ids {
		ls[i] = h.listeners[id]
	}
	h.mu.Unlock()

	for _, l := range ls {
		l(s)
	}
}

// resetTicker adjusts t when the hub interval changed since cur.
func (h *Hub) resetTicker(t *time.Ticker, cur time.Duration) time.Duration {
	if iv := h.UpdateInterval(); iv != cur {
		t.Reset(iv)
		return iv
	}
	return cur
}
