package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CreateSchema creates all tables needed by the reward core.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// scan_records.code is the per-code mutual exclusion unit; the partial index
// on ledger_entries allows at most one reward per scanned code.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS scan_records (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		reward_amount NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (reward_amount >= 0),
		rejection_reason TEXT,
		submitted_at TIMESTAMPTZ NOT NULL,
		decided_at TIMESTAMPTZ,
		decided_by TEXT,
		CHECK ((status = 'rejected') = (rejection_reason IS NOT NULL)),
		CHECK ((status = 'pending') = (decided_at IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_records_owner ON scan_records(owner_id, submitted_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_records_status ON scan_records(status, submitted_at)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('credit', 'reward', 'withdrawal')),
		amount NUMERIC(14, 2) NOT NULL CHECK (amount >= 0),
		source_ref TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_user ON ledger_entries(user_id, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_ledger_reward_source ON ledger_entries(source_ref) WHERE kind = 'reward'`,
}
