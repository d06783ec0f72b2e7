package journal

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"busboard/internal/store"
)

// Entry is one unit of history to persist: a published message or a
// single delivery.
type Entry struct {
	Message  *store.Message
	Delivery *store.Delivery
}

// Stats exposes current writer state.
type Stats struct {
	Length    int    `json:"length"`
	Capacity  int    `json:"capacity"`
	Workers   int    `json:"workers"`
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

// Writer drains journal entries into the store on a bounded channel so
// Publish never waits on sqlite. When the buffer is full entries are
// dropped with a log line; history is best-effort.
type Writer struct {
	st      *store.Store
	entries chan Entry
	workers int
	started bool
	mu      sync.RWMutex
	wg      sync.WaitGroup

	processed uint64
	dropped   uint64
	failed    uint64
}

// New creates a Writer with the provided buffer capacity and worker
// count.
func New(st *store.Store, capacity, workers int) *Writer {
	return &Writer{
		st:      st,
		entries: make(chan Entry, capacity),
		workers: workers,
	}
}

// Start launches the worker pool.
func (w *Writer) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.worker(ctx)
	}
}

// Record attempts to queue an entry without blocking. Returns false if
// the buffer is full or the writer has not started.
func (w *Writer) Record(e Entry) bool {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		atomic.AddUint64(&w.dropped, 1)
		return false
	}
	select {
	case w.entries <- e:
		return true
	default:
		atomic.AddUint64(&w.dropped, 1)
		log.Printf("journal buffer full, dropping entry")
		return false
	}
}

// Stop stops accepting entries and waits for the buffer to drain until
// ctx is done.
func (w *Writer) Stop(ctx context.Context) {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	close(w.entries)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Stats returns a snapshot of writer counters.
func (w *Writer) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{
		Length:    len(w.entries),
		Capacity:  cap(w.entries),
		Workers:   w.workers,
		Processed: atomic.LoadUint64(&w.processed),
		Dropped:   atomic.LoadUint64(&w.dropped),
		Failed:    atomic.LoadUint64(&w.failed),
	}
}

func (w *Writer) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain what is already buffered before giving up.
			for {
				select {
				case e, ok := <-w.entries:
					if !ok {
						return
					}
					w.persist(context.Background(), e)
				default:
					return
				}
			}
		case e, ok := <-w.entries:
			if !ok {
				return
			}
			w.persist(context.Background(), e)
		}
	}
}

func (w *Writer) persist(ctx context.Context, e Entry) {
	var err error
	switch {
	case e.Message != nil:
		err = w.st.RecordMessage(ctx, *e.Message)
	case e.Delivery != nil:
		err = w.st.RecordDelivery(ctx, *e.Delivery)
	default:
		return
	}
	atomic.AddUint64(&w.processed, 1)
	if err != nil {
		atomic.AddUint64(&w.failed, 1)
		log.Printf("journal write failed: %v", err)
	}
}
