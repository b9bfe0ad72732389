package events

import (
	"sync"
	"time"
)

// Publisher is what collectors need to surface status messages.
type Publisher interface {
	Publish(sessionID string, ev StreamEvent)
}

// Hub fans session events out to subscribers. Slow subscribers drop events
// rather than block the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan StreamEvent]struct{}
	buffer int
	now    func() time.Time
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: map[string]map[chan StreamEvent]struct{}{}, buffer: buffer, now: time.Now}
}

// Subscribe returns a channel of events for sessionID and a cancel func that
// must be called to release it.
func (h *Hub) Subscribe(sessionID string) (<-chan StreamEvent, func()) {
	ch := make(chan StreamEvent, h.buffer)
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = map[chan StreamEvent]struct{}{}
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			close(ch)
		})
	}
}

func (h *Hub) Publish(sessionID string, ev StreamEvent) {
	if h == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many listeners a session has.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(string, StreamEvent) {}
