package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is a single published payload addressed to named subscribers.
// It is immutable once constructed; Publish hands every matching
// subscriber the same value, full recipient list included.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Recipients  []string  `json:"recipients"`
	PublishedAt time.Time `json:"published_at"`
}

// NewMessage builds a Message with a fresh id and timestamp.
func NewMessage(content string, recipients []string) Message {
	return Message{
		ID:          uuid.NewString(),
		Content:     content,
		Recipients:  append([]string(nil), recipients...),
		PublishedAt: time.Now().UTC(),
	}
}

// Subscriber is a named delivery target. Names are not unique: two
// subscribers may share a name and both receive matching messages.
// Identity is the pointer, which is what Unsubscribe compares.
type Subscriber struct {
	Name    string
	Deliver func(Message)
}

// DeliveryHook observes each completed delivery. Hooks run after the
// subscriber callback, in registration order.
type DeliveryHook func(Message, *Subscriber)

// Bus is an in-memory registry of subscribers with synchronous fan-out.
// The registry preserves insertion order and only changes via Subscribe
// and Unsubscribe; Publish never mutates it.
type Bus struct {
	mu    sync.RWMutex
	subs  []*Subscriber
	hooks []DeliveryHook
}

func New() *Bus { return &Bus{} }

// Subscribe appends the subscriber to the registry. Duplicate names are
// allowed; each call registers an independent entry.
func (b *Bus) Subscribe(s *Subscriber) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Unsubscribe removes the entry whose identity equals s. Removing an
// unknown subscriber is a no-op; other entries sharing the same name are
// untouched.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, sub := range b.subs {
		if sub != s {
			kept = append(kept, sub)
		}
	}
	for i := len(kept); i < len(b.subs); i++ {
		b.subs[i] = nil
	}
	b.subs = kept
}

// UnsubscribeNamed removes every entry registered under name and returns
// how many were removed.
func (b *Bus) UnsubscribeNamed(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	removed := 0
	for _, sub := range b.subs {
		if sub.Name == name {
			removed++
			continue
		}
		kept = append(kept, sub)
	}
	for i := len(kept); i < len(b.subs); i++ {
		b.subs[i] = nil
	}
	b.subs = kept
	return removed
}

// OnDelivery registers a hook observing every delivery.
func (b *Bus) OnDelivery(h DeliveryHook) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, h)
}

// Publish delivers msg to every subscriber whose name appears in the
// recipient list, synchronously, in registry order, and returns the
// number of deliveries. A name repeated in the list still yields at most
// one delivery per registry entry. Zero matches is not an error.
//
// Matching snapshots the registry under the read lock and invokes
// callbacks outside it, so a callback may subscribe or unsubscribe
// without deadlocking; such changes take effect on the next publish.
func (b *Bus) Publish(msg Message) int {
	want := make(map[string]struct{}, len(msg.Recipients))
	for _, r := range msg.Recipients {
		want[r] = struct{}{}
	}

	b.mu.RLock()
	matched := make([]*Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if _, ok := want[sub.Name]; ok {
			matched = append(matched, sub)
		}
	}
	hooks := append([]DeliveryHook(nil), b.hooks...)
	b.mu.RUnlock()

	for _, sub := range matched {
		if sub.Deliver != nil {
			sub.Deliver(msg)
		}
		for _, h := range hooks {
			h(msg, sub)
		}
	}
	return len(matched)
}

// Len reports the current registry size.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Names returns the registered names in insertion order, duplicates
// included.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, len(b.subs))
	for i, sub := range b.subs {
		names[i] = sub.Name
	}
	return names
}
