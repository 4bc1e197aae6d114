package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS controller_events (
		id              BIGSERIAL PRIMARY KEY,
		source_id       BIGINT NOT NULL DEFAULT 0,
		action          TEXT NOT NULL,
		details         TEXT NOT NULL DEFAULT '',
		is_notification BOOLEAN NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_controller_events_created ON controller_events (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS strategy_switches (
		id              BIGSERIAL PRIMARY KEY,
		cycle_id        TEXT NOT NULL,
		action          TEXT NOT NULL,
		from_strategy   TEXT NOT NULL DEFAULT '',
		from_instrument TEXT NOT NULL DEFAULT '',
		to_strategy     TEXT NOT NULL,
		to_instrument   TEXT NOT NULL,
		score           DOUBLE PRECISION NOT NULL,
		improvement     DOUBLE PRECISION NOT NULL,
		confidence      DOUBLE PRECISION NOT NULL,
		reason          TEXT NOT NULL DEFAULT '',
		metrics         JSONB NOT NULL DEFAULT '{}',
		switched_at     TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_strategy_switches_at ON strategy_switches (switched_at DESC)`,
}

// Migrate creates the controller tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
