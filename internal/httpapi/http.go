package httpapi

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"busboard/internal/avatar"
	"busboard/internal/board"
	"busboard/internal/bus"
	"busboard/internal/config"
	"busboard/internal/events"
	"busboard/internal/form"
	"busboard/internal/journal"
	"busboard/internal/metrics"
	"busboard/internal/store"
)

//go:embed static
var staticFS embed.FS

// Router builds the HTTP surface: the form page, the form POST
// endpoints, the JSON API, the SSE stream, and /ops.
type Router struct {
	cfg    config.Config
	bus    *bus.Bus
	forms  *form.Handler
	board  *board.Board
	store  *store.Store
	writer *journal.Writer
	hub    *events.Hub
}

func NewRouter(cfg config.Config, b *bus.Bus, forms *form.Handler, bd *board.Board, st *store.Store, w *journal.Writer, hub *events.Hub) *Router {
	return &Router{cfg: cfg, bus: b, forms: forms, board: bd, store: st, writer: w, hub: hub}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", r.index)
	mux.HandleFunc("/subscribers", r.subscribers)
	mux.HandleFunc("/subscribers/", r.subscriberDetail)
	mux.HandleFunc("/publish", r.publish)
	mux.HandleFunc("/api/board", r.boardSnapshot)
	mux.HandleFunc("/api/messages", r.messages)
	mux.HandleFunc("/api/deliveries", r.deliveries)
	mux.HandleFunc("/events", r.stream)
	mux.HandleFunc("/avatars/", r.avatars)
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/status", r.status)
}

func (r *Router) index(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// subscribers handles the "add subscriber" form.
func (r *Router) subscribers(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := req.PostFormValue("subscriberName")
	sub, err := r.forms.HandleSubscribe(form.SubscribeSubmission{Name: name})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.board.Track(sub.Name)
	metrics.IncSubscribes()
	log.Printf("subscribed name=%s", sub.Name)
	r.done(w, req, map[string]any{"subscribed": sub.Name})
}

// subscriberDetail handles DELETE /subscribers/{name} and the form
// fallback POST /subscribers/{name}/remove.
func (r *Router) subscriberDetail(w http.ResponseWriter, req *http.Request) {
	name := strings.TrimPrefix(req.URL.Path, "/subscribers/")
	isRemoveForm := strings.HasSuffix(name, "/remove")
	name = strings.TrimSuffix(name, "/remove")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, req)
		return
	}
	switch {
	case req.Method == http.MethodDelete,
		req.Method == http.MethodPost && isRemoveForm:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	removed := r.forms.HandleRemove(name)
	if removed > 0 {
		r.board.Forget(name)
		metrics.AddUnsubscribes(int64(removed))
		log.Printf("unsubscribed name=%s entries=%d", name, removed)
	}
	// Unknown names are a no-op, not an error.
	r.done(w, req, map[string]any{"removed": removed})
}

// publish handles the "publish message" form: content plus a
// comma-separated recipient list.
func (r *Router) publish(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	submission := form.PublishSubmission{
		Content:    req.PostFormValue("message"),
		Recipients: req.PostFormValue("recipients"),
	}
	msg, delivered, err := r.forms.HandlePublish(submission)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.IncPublished()
	if delivered == 0 {
		metrics.IncNoMatch()
	}
	r.writer.Record(journal.Entry{Message: &store.Message{
		ID:          msg.ID,
		Content:     msg.Content,
		Recipients:  msg.Recipients,
		Delivered:   delivered,
		PublishedAt: msg.PublishedAt,
	}})
	log.Printf("published id=%s recipients=%d delivered=%d", msg.ID, len(msg.Recipients), delivered)
	r.done(w, req, map[string]any{"message_id": msg.ID, "delivered": delivered})
}

func (r *Router) boardSnapshot(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, map[string]any{"rows": r.board.Rows()})
}

func (r *Router) messages(w http.ResponseWriter, req *http.Request) {
	list, err := r.store.ListMessages(req.Context(), r.limit(req))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, list)
}

func (r *Router) deliveries(w http.ResponseWriter, req *http.Request) {
	var (
		list []store.Delivery
		err  error
	)
	if sub := req.URL.Query().Get("subscriber"); sub != "" {
		list, err = r.store.DeliveriesFor(req.Context(), sub, r.limit(req))
	} else {
		list, err = r.store.ListDeliveries(req.Context(), r.limit(req))
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, list)
}

// stream pushes delivery events to the browser over SSE.
func (r *Router) stream(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, snapshot := r.hub.Subscribe()
	defer r.hub.Unsubscribe(ch)
	send := func(evt events.DeliveryEvent) {
		data, _ := json.Marshal(evt)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	for _, evt := range snapshot {
		send(evt)
	}
	for {
		select {
		case evt := <-ch:
			send(evt)
		case <-req.Context().Done():
			return
		}
	}
}

func (r *Router) avatars(w http.ResponseWriter, req *http.Request) {
	name := strings.TrimPrefix(req.URL.Path, "/avatars/")
	name = strings.TrimSuffix(name, ".png")
	if name == "" {
		http.NotFound(w, req)
		return
	}
	img, err := avatar.PNG(name, r.board.Color(name))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	_, _ = w.Write(img)
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, map[string]any{
		"subscribers": r.bus.Len(),
		"counters":    metrics.Snapshot(),
		"journal":     r.writer.Stats(),
		"recent":      r.hub.Recent(),
	})
}

func (r *Router) limit(req *http.Request) int {
	if v := req.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return r.cfg.HistoryLimit
}

// done finishes a form POST: browsers get a redirect back to the page,
// API callers get JSON.
func (r *Router) done(w http.ResponseWriter, req *http.Request, payload map[string]any) {
	if strings.Contains(req.Header.Get("Accept"), "text/html") {
		http.Redirect(w, req, "/", http.StatusSeeOther)
		return
	}
	respondJSON(w, payload)
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
