package board

import (
	"sync"
	"time"
)

// Row is one line of the delivery table: the latest content delivered to
// a subscriber name plus bookkeeping for the UI.
type Row struct {
	Name        string     `json:"name"`
	LastContent string     `json:"last_content"`
	Deliveries  int64      `json:"deliveries"`
	LastAt      *time.Time `json:"last_at"`
	Color       string     `json:"color"`
}

// Board is the in-memory table backing the UI. It implements the form
// package's Renderer: each delivery overwrites the row for that name.
type Board struct {
	mu    sync.RWMutex
	rows  map[string]*Row
	order []string
}

// UI row colours, assigned round-robin by first appearance.
var palette = []string{
	"#2563eb", "#16a34a", "#d97706", "#dc2626",
	"#7c3aed", "#0891b2", "#db2777", "#65a30d",
}

func New() *Board {
	return &Board{rows: make(map[string]*Row)}
}

// Track ensures a row exists for name without recording a delivery, so
// freshly subscribed names show up in the table before their first
// message.
func (b *Board) Track(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureRow(name)
}

// Render records a delivery for name. Satisfies form.Renderer.
func (b *Board) Render(name, content string) {
	now := time.Now().UTC()
	b.mu.Lock()
	defer b.mu.Unlock()
	row := b.ensureRow(name)
	row.LastContent = content
	row.Deliveries++
	row.LastAt = &now
}

// Forget drops the row for name, for when its last subscriber is
// removed.
func (b *Board) Forget(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rows[name]; !ok {
		return
	}
	delete(b.rows, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Rows returns a copy of the table in first-seen order.
func (b *Board) Rows() []Row {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Row, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.rows[name])
	}
	return out
}

// Color returns the display colour assigned to name, or the first
// palette entry if the name is unknown.
func (b *Board) Color(name string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if row, ok := b.rows[name]; ok {
		return row.Color
	}
	return palette[0]
}

func (b *Board) ensureRow(name string) *Row {
	if row, ok := b.rows[name]; ok {
		return row
	}
	row := &Row{Name: name, Color: palette[len(b.order)%len(palette)]}
	b.rows[name] = row
	b.order = append(b.order, name)
	return row
}
