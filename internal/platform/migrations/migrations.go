// Package migrations applies the service schema. Statements are idempotent
// so Apply can run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS principals (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT principals_username_unique UNIQUE (username),
		CONSTRAINT principals_email_unique UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS calculations (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
		operand_a  DOUBLE PRECISION NOT NULL,
		operand_b  DOUBLE PRECISION NOT NULL,
		kind       VARCHAR(20) NOT NULL,
		result     DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS calculations_owner_created_idx
		ON calculations (owner_id, created_at)`,
}

// Apply executes all schema statements in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
