package events

import (
	"sync"
	"time"
)

// DeliveryEvent is what the browser sees on the live stream: one
// subscriber receiving one message.
type DeliveryEvent struct {
	MessageID  string    `json:"message_id"`
	Subscriber string    `json:"subscriber"`
	Content    string    `json:"content"`
	At         time.Time `json:"at"`
}

// Hub fans delivery events out to SSE connections. It keeps a bounded
// ring of recent events so a new connection can replay what it missed.
// Sends never block: a slow consumer loses events rather than stalling
// the bus.
type Hub struct {
	mu   sync.Mutex
	ring []DeliveryEvent
	subs map[chan DeliveryEvent]struct{}
	size int
}

func NewHub(size int) *Hub {
	return &Hub{subs: make(map[chan DeliveryEvent]struct{}), size: size}
}

// Broadcast appends evt to the ring and offers it to every connection.
func (h *Hub) Broadcast(evt DeliveryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring = append(h.ring, evt)
	if len(h.ring) > h.size {
		h.ring = h.ring[len(h.ring)-h.size:]
	}
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a connection channel and returns it together with
// a snapshot of the ring for replay.
func (h *Hub) Subscribe() (chan DeliveryEvent, []DeliveryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan DeliveryEvent, h.size)
	h.subs[ch] = struct{}{}
	snapshot := append([]DeliveryEvent(nil), h.ring...)
	return ch, snapshot
}

// Unsubscribe drops the connection channel.
func (h *Hub) Unsubscribe(ch chan DeliveryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, ch)
}

// Recent returns a copy of the ring, newest last.
func (h *Hub) Recent() []DeliveryEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]DeliveryEvent(nil), h.ring...)
}
