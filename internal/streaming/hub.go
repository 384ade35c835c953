// Package streaming is the in-process progress sink: coarse-grained,
// advisory status events published at phase boundaries and fanned out to
// WebSocket subscribers. No contract on frequency or wording.
package streaming

import (
	"sync"
	"time"

	"github.com/horizon-research/horizon/internal/metrics"
)

// Event is one progress update for a session's active run.
type Event struct {
	SessionID string    `json:"session_id"`
	Phase     string    `json:"phase"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub provides in-memory pub/sub keyed by session ID.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a buffered channel for sessionID. The caller must
// drain it and call Unsubscribe when done.
func (h *Hub) Subscribe(sessionID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[sessionID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		h.subscribers[sessionID] = subs
	}
	subs[ch] = struct{}{}
	metrics.ProgressSubscribers.Inc()
	return ch
}

// Unsubscribe removes and closes the channel.
func (h *Hub) Unsubscribe(sessionID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[sessionID]; ok {
		if _, present := subs[ch]; present {
			delete(subs, ch)
			close(ch)
			metrics.ProgressSubscribers.Dec()
		}
		if len(subs) == 0 {
			delete(h.subscribers, sessionID)
		}
	}
}

// Publish delivers the event to current subscribers. Slow subscribers drop
// events rather than blocking the publisher.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	metrics.ProgressEventsPublished.Inc()
	for ch := range h.subscribers[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
