package form

import (
	"errors"
	"strings"
	"sync"

	"busboard/internal/bus"
)

// Construction and validation errors.
var (
	ErrNoBus        = errors.New("form: handler requires a bus")
	ErrNoRenderer   = errors.New("form: handler requires a renderer")
	ErrBlankName    = errors.New("form: subscriber name is required")
	ErrBlankContent = errors.New("form: message content is required")
	ErrNoRecipients = errors.New("form: at least one recipient is required")
)

// Renderer is the capability a subscriber callback writes into. It
// stands between the bus and whatever displays deliveries, so the bus
// never sees UI types.
type Renderer interface {
	Render(name, content string)
}

// SubscribeSubmission is the parsed "add subscriber" form.
type SubscribeSubmission struct {
	Name string
}

// PublishSubmission is the parsed "publish message" form. Recipients is
// the raw comma-separated field as submitted.
type PublishSubmission struct {
	Content    string
	Recipients string
}

// Handler translates form submissions into bus operations and owns the
// subscribers it registers on the UI's behalf.
type Handler struct {
	bus      *bus.Bus
	renderer Renderer

	mu    sync.Mutex
	owned map[string][]*bus.Subscriber
}

// New builds a Handler. Both collaborators are required; construction
// fails loudly rather than deferring the nil check to first use.
func New(b *bus.Bus, r Renderer) (*Handler, error) {
	if b == nil {
		return nil, ErrNoBus
	}
	if r == nil {
		return nil, ErrNoRenderer
	}
	return &Handler{bus: b, renderer: r, owned: make(map[string][]*bus.Subscriber)}, nil
}

// HandleSubscribe registers a subscriber for the submitted name whose
// callback renders delivered content under that name. Returns the
// registered subscriber so callers can unsubscribe it directly.
func (h *Handler) HandleSubscribe(sub SubscribeSubmission) (*bus.Subscriber, error) {
	name := strings.TrimSpace(sub.Name)
	if name == "" {
		return nil, ErrBlankName
	}
	s := &bus.Subscriber{
		Name:    name,
		Deliver: func(m bus.Message) { h.renderer.Render(name, m.Content) },
	}
	h.bus.Subscribe(s)
	h.mu.Lock()
	h.owned[name] = append(h.owned[name], s)
	h.mu.Unlock()
	return s, nil
}

// HandlePublish splits the recipient field on commas, trims each name,
// and publishes. Empty fragments ("a,,b" or trailing commas) are
// dropped; unknown recipients are fine, the bus just delivers to
// nobody for them.
func (h *Handler) HandlePublish(sub PublishSubmission) (bus.Message, int, error) {
	content := strings.TrimSpace(sub.Content)
	if content == "" {
		return bus.Message{}, 0, ErrBlankContent
	}
	recipients := SplitRecipients(sub.Recipients)
	if len(recipients) == 0 {
		return bus.Message{}, 0, ErrNoRecipients
	}
	msg := bus.NewMessage(content, recipients)
	delivered := h.bus.Publish(msg)
	return msg, delivered, nil
}

// HandleRemove unsubscribes every form-owned subscriber registered
// under name and returns how many were removed. Unknown names are a
// no-op.
func (h *Handler) HandleRemove(name string) int {
	h.mu.Lock()
	subs := h.owned[name]
	delete(h.owned, name)
	h.mu.Unlock()
	for _, s := range subs {
		h.bus.Unsubscribe(s)
	}
	return len(subs)
}

// SplitRecipients parses a comma-separated recipient field into a
// trimmed list, dropping empty fragments.
func SplitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}
