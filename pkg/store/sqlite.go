package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/treasury/pkg/eventlog"
)

// SQLiteStore implements EventStore on a SQLite database.
//
// Amounts and IDs are stored as signed 64-bit integers; values beyond 1<<63
// are not supported by the SQL backends.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db and creates the events table if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteStore opens (or creates) a SQLite database at path. Use
// ":memory:" for tests.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS treasury_events (
		id INTEGER PRIMARY KEY,
		type TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL,
		amount INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL DEFAULT '',
		logical_time INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		prev_hash TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, ev eventlog.Event) error {
	query := `
	INSERT OR IGNORE INTO treasury_events
		(id, type, project_id, actor, amount, payload, logical_time, content_hash, prev_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		int64(ev.ID), string(ev.Type), ev.ProjectID, ev.Actor, int64(ev.Amount),
		ev.Payload, int64(ev.LogicalTime), ev.ContentHash, ev.PrevHash)
	if err != nil {
		return fmt.Errorf("append event %d: %w", ev.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Range(ctx context.Context, start, end uint64) ([]eventlog.Event, error) {
	query := `
	SELECT id, type, project_id, actor, amount, payload, logical_time, content_hash, prev_hash
	FROM treasury_events WHERE id >= ? AND id <= ? ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("range events [%d,%d]: %w", start, end, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) MaxID(ctx context.Context) (uint64, error) {
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM treasury_events")
	var max int64
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("max event id: %w", err)
	}
	return uint64(max), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanEvents(rows *sql.Rows) ([]eventlog.Event, error) {
	var out []eventlog.Event
	for rows.Next() {
		var (
			id, amount, logicalTime int64
			evType                  string
			ev                      eventlog.Event
		)
		if err := rows.Scan(&id, &evType, &ev.ProjectID, &ev.Actor, &amount,
			&ev.Payload, &logicalTime, &ev.ContentHash, &ev.PrevHash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.ID = uint64(id)
		ev.Type = eventlog.Type(evType)
		ev.Amount = uint64(amount)
		ev.LogicalTime = uint64(logicalTime)
		out = append(out, ev)
	}
	return out, rows.Err()
}
