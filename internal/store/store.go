package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite access for the message and delivery journal. The
// journal is an observer of bus traffic; nothing in delivery semantics
// depends on it.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            content TEXT,
            recipients TEXT,
            delivered INTEGER,
            published_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS deliveries (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            message_id TEXT,
            subscriber TEXT,
            content TEXT,
            delivered_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_msg ON deliveries(message_id);`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_sub ON deliveries(subscriber);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Message is one published message as journalled.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Recipients  []string  `json:"recipients"`
	Delivered   int       `json:"delivered"`
	PublishedAt time.Time `json:"published_at"`
}

// Delivery records one subscriber receiving one message.
type Delivery struct {
	ID          int64     `json:"id"`
	MessageID   string    `json:"message_id"`
	Subscriber  string    `json:"subscriber"`
	Content     string    `json:"content"`
	DeliveredAt time.Time `json:"delivered_at"`
}

func (s *Store) RecordMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages(id, content, recipients, delivered, published_at)
        VALUES(?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET delivered=excluded.delivered`,
		m.ID, m.Content, strings.Join(m.Recipients, ","), m.Delivered, m.PublishedAt)
	return err
}

func (s *Store) RecordDelivery(ctx context.Context, d Delivery) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO deliveries(message_id, subscriber, content, delivered_at) VALUES(?,?,?,?)`,
		d.MessageID, d.Subscriber, d.Content, d.DeliveredAt)
	return err
}

func (s *Store) ListMessages(ctx context.Context, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, recipients, delivered, published_at FROM messages ORDER BY published_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []Message
	for rows.Next() {
		var m Message
		var recipients string
		if err := rows.Scan(&m.ID, &m.Content, &recipients, &m.Delivered, &m.PublishedAt); err != nil {
			return nil, err
		}
		if recipients != "" {
			m.Recipients = strings.Split(recipients, ",")
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, message_id, subscriber, content, delivered_at FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.MessageID, &d.Subscriber, &d.Content, &d.DeliveredAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeliveriesFor lists the journal for one subscriber name, newest first.
func (s *Store) DeliveriesFor(ctx context.Context, subscriber string, limit int) ([]Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, message_id, subscriber, content, delivered_at FROM deliveries WHERE subscriber=? ORDER BY id DESC LIMIT ?`, subscriber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.MessageID, &d.Subscriber, &d.Content, &d.DeliveredAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
