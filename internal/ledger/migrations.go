package ledger

import (
	"context"
	"fmt"
)

// Migrate creates the schema if it does not exist. payment_hash carries
// the unique constraint that makes settlement dedup durable.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			owner_id BIGINT NOT NULL,
			kind TEXT NOT NULL,
			amount NUMERIC(20,2) NOT NULL,
			status TEXT NOT NULL,
			payment_hash TEXT UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		);`,

		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_owner
			ON ledger_entries (owner_id, created_at DESC);`,

		`CREATE TABLE IF NOT EXISTS balances (
			owner_id BIGINT PRIMARY KEY,
			balance NUMERIC(20,2) NOT NULL DEFAULT 0
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
