package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Mindburn-Labs/treasury/pkg/eventlog"
)

// PostgresStore implements EventStore on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-opened database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the events table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS treasury_events (
		id BIGINT PRIMARY KEY,
		type TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL,
		amount BIGINT NOT NULL DEFAULT 0,
		payload TEXT NOT NULL DEFAULT '',
		logical_time BIGINT NOT NULL,
		content_hash TEXT NOT NULL,
		prev_hash TEXT NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, ev eventlog.Event) error {
	query := `
	INSERT INTO treasury_events
		(id, type, project_id, actor, amount, payload, logical_time, content_hash, prev_hash)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		int64(ev.ID), string(ev.Type), ev.ProjectID, ev.Actor, int64(ev.Amount),
		ev.Payload, int64(ev.LogicalTime), ev.ContentHash, ev.PrevHash)
	if err != nil {
		return fmt.Errorf("append event %d: %w", ev.ID, err)
	}
	return nil
}

func (s *PostgresStore) Range(ctx context.Context, start, end uint64) ([]eventlog.Event, error) {
	query := `
	SELECT id, type, project_id, actor, amount, payload, logical_time, content_hash, prev_hash
	FROM treasury_events WHERE id >= $1 AND id <= $2 ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("range events [%d,%d]: %w", start, end, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) MaxID(ctx context.Context) (uint64, error) {
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM treasury_events")
	var max int64
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("max event id: %w", err)
	}
	return uint64(max), nil
}
