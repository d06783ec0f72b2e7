package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"busboard/internal/board"
	"busboard/internal/bus"
	"busboard/internal/config"
	"busboard/internal/events"
	"busboard/internal/form"
	"busboard/internal/httpapi"
	"busboard/internal/journal"
	"busboard/internal/metrics"
	"busboard/internal/notify"
	"busboard/internal/store"
	"busboard/internal/watch"
)

// App wires the bus, board, journal, and HTTP surface together.
type App struct {
	cfg     config.Config
	bus     *bus.Bus
	board   *board.Board
	forms   *form.Handler
	store   *store.Store
	writer  *journal.Writer
	hub     *events.Hub
	watcher *watch.Watcher
	mux     *http.ServeMux
}

func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	b := bus.New()
	bd := board.New()
	forms, err := form.New(b, bd)
	if err != nil {
		return nil, err
	}
	writer := journal.New(st, cfg.JournalSize, cfg.JournalWorkers)
	hub := events.NewHub(cfg.EventBufferSize)

	// Every delivery feeds the journal, the live stream, and the
	// counters; none of them participate in delivery itself.
	b.OnDelivery(func(m bus.Message, s *bus.Subscriber) {
		now := time.Now().UTC()
		metrics.AddDeliveries(1)
		writer.Record(journal.Entry{Delivery: &store.Delivery{
			MessageID:   m.ID,
			Subscriber:  s.Name,
			Content:     m.Content,
			DeliveredAt: now,
		}})
		hub.Broadcast(events.DeliveryEvent{
			MessageID:  m.ID,
			Subscriber: s.Name,
			Content:    m.Content,
			At:         now,
		})
	})

	if cfg.WebhookURL != "" {
		b.Subscribe(notify.Subscriber(cfg.WebhookName, cfg.WebhookURL, nil))
		bd.Track(cfg.WebhookName)
		log.Printf("webhook subscriber %s -> %s", cfg.WebhookName, cfg.WebhookURL)
	}

	a := &App{
		cfg:    cfg,
		bus:    b,
		board:  bd,
		forms:  forms,
		store:  st,
		writer: writer,
		hub:    hub,
		mux:    http.NewServeMux(),
	}
	a.watcher = watch.New(cfg, a)
	router := httpapi.NewRouter(cfg, b, forms, bd, st, writer, hub)
	router.Register(a.mux)
	return a, nil
}

// Seed registers a preset subscriber name. Satisfies watch.Seeder.
// Names already on the board are skipped so a presets reload does not
// pile up duplicate registry entries.
func (a *App) Seed(name string) {
	for _, row := range a.board.Rows() {
		if row.Name == name {
			return
		}
	}
	if _, err := a.forms.HandleSubscribe(form.SubscribeSubmission{Name: name}); err != nil {
		log.Printf("seed %s: %v", name, err)
		return
	}
	a.board.Track(name)
	metrics.IncSubscribes()
}

// Run starts the journal writer, watcher, and HTTP server, and shuts
// them down when ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.writer.Start(ctx)
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		a.writer.Stop(shutdownCtx)
		_ = a.store.Close()
	}()
	log.Printf("http listening on %s", a.cfg.HTTPPort)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (a *App) Bus() *bus.Bus { return a.bus }

func (a *App) Board() *board.Board { return a.board }

func (a *App) Mux() *http.ServeMux { return a.mux }

func (a *App) Store() *store.Store { return a.store }

func (a *App) Forms() *form.Handler { return a.forms }

func (a *App) Hub() *events.Hub { return a.hub }

func (a *App) Writer() *journal.Writer { return a.writer }
