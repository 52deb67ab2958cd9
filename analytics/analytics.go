// Package analytics persists swatch-change events to SQLite. It is the
// optional external collaborator the engine notifies after each committed
// switch: recording is non-blocking for the caller and a failing store is
// logged, never propagated, so analytics can never break a switch.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/hazyhaar/swatchsync/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS swatch_change_events (
    event_id TEXT PRIMARY KEY,
    block_id TEXT NOT NULL,
    product_id TEXT,
    color_name TEXT NOT NULL,
    color_value TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_swatch_events_block
    ON swatch_change_events(block_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_swatch_events_time
    ON swatch_change_events(created_at DESC);
`

// Store records swatch-change events in a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	newID  func() string
}

// Open creates (or opens) the analytics database at path with the production
// pragmas applied, and ensures the schema. Use ":memory:" in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("analytics: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("analytics: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("analytics: apply schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger,
		newID:  func() string { return "evt_" + uuid.Must(uuid.NewV7()).String() },
	}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for admin queries and tests.
func (s *Store) DB() *sql.DB { return s.db }

// RecordSwatchChange implements engine.Recorder. Errors are logged via slog
// but do not propagate — a failing analytics store never blocks a switch.
func (s *Store) RecordSwatchChange(ev engine.ChangeEvent) {
	_, err := s.db.Exec(`
		INSERT INTO swatch_change_events (
			event_id, block_id, product_id, color_name, color_value, created_at
		) VALUES (?,?,?,?,?,?)`,
		s.newID(), ev.BlockID, ev.ProductID, ev.ColorName, ev.ColorValue,
		time.Now().Unix())
	if err != nil {
		s.logger.Error("analytics: event insert failed",
			"block", ev.BlockID, "error", err)
	}
}

// Event is one recorded swatch change.
type Event struct {
	EventID    string `json:"event_id"`
	BlockID    string `json:"block_id"`
	ProductID  string `json:"product_id,omitempty"`
	ColorName  string `json:"color_name"`
	ColorValue string `json:"color_value,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// Recent returns the most recent events, newest first. Limit defaults to 50.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, block_id, COALESCE(product_id, ''),
		       color_name, COALESCE(color_value, ''), created_at
		FROM swatch_change_events
		ORDER BY created_at DESC, event_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("analytics: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.EventID, &ev.BlockID, &ev.ProductID,
			&ev.ColorName, &ev.ColorValue, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("analytics: scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
