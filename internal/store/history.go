package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xtding233/fairwheel/internal/wheel"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS draws (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    entry_index INTEGER NOT NULL,
    name TEXT NOT NULL,
    counter INTEGER NOT NULL,
    drawn_at INTEGER NOT NULL,
    UNIQUE (batch_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_draws_batch_id ON draws(batch_id);
CREATE INDEX IF NOT EXISTS idx_draws_drawn_at ON draws(drawn_at);
`

// History is the SQLite-backed draw log. It implements wheel.Recorder.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the history database at path.
// ":memory:" gives a private in-memory database.
func OpenHistory(path string) (*History, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection: ":memory:" databases are per connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &History{db: db}, nil
}

func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// RecordDraw appends one committed winner.
func (h *History) RecordDraw(ctx context.Context, d wheel.DrawRecord) error {
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO draws (batch_id, seq, entry_index, name, counter, drawn_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.BatchID, d.Seq, d.Index, d.Name, d.Counter, at.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert draw: %w", err)
	}
	return nil
}

// Recent returns the latest draws, newest first. limit <= 0 means 50.
func (h *History) Recent(ctx context.Context, limit int) ([]wheel.DrawRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT batch_id, seq, entry_index, name, counter, drawn_at
		 FROM draws ORDER BY drawn_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query draws: %w", err)
	}
	defer rows.Close()
	return scanDraws(rows)
}

// Batch returns the draws of one batch in draw order.
func (h *History) Batch(ctx context.Context, batchID string) ([]wheel.DrawRecord, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT batch_id, seq, entry_index, name, counter, drawn_at
		 FROM draws WHERE batch_id = ? ORDER BY seq`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}
	defer rows.Close()
	return scanDraws(rows)
}

// WinCounts returns how often each name was drawn over the whole history.
func (h *History) WinCounts(ctx context.Context) (map[string]int, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT name, COUNT(*) FROM draws GROUP BY name`)
	if err != nil {
		return nil, fmt.Errorf("query win counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

func scanDraws(rows *sql.Rows) ([]wheel.DrawRecord, error) {
	var out []wheel.DrawRecord
	for rows.Next() {
		var (
			d  wheel.DrawRecord
			ms int64
		)
		if err := rows.Scan(&d.BatchID, &d.Seq, &d.Index, &d.Name, &d.Counter, &ms); err != nil {
			return nil, err
		}
		d.At = time.UnixMilli(ms).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}
