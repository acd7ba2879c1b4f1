// internal/storage/postgres/history_store.go
package postgres

import (
	"context"
	"fmt"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/storage"
)

const historySchema = `
	CREATE TABLE IF NOT EXISTS bot_history (
		id          BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		text        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS bot_history_recorded_at_idx ON bot_history (recorded_at);
`

// HistoryStore mirrors the history log into PostgreSQL.
type HistoryStore struct {
	pool *Pool
}

// NewHistoryStore creates a HistoryStore.
func NewHistoryStore(pool *Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.Sink = (*HistoryStore)(nil)

// EnsureSchema creates the history table if it does not exist.
func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Append implements storage.Sink.
func (s *HistoryStore) Append(ctx context.Context, entry storage.HistoryEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bot_history (recorded_at, text) VALUES ($1, $2)`,
		entry.RecordedAt.UTC(), entry.Text)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent entries, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]storage.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT recorded_at, text FROM bot_history ORDER BY recorded_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []storage.HistoryEntry
	for rows.Next() {
		var e storage.HistoryEntry
		if err := rows.Scan(&e.RecordedAt, &e.Text); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}
