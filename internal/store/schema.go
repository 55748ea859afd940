package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// The DDL sticks to types and clauses both postgres and sqlite accept.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS guardian_profiles (
		user_id TEXT PRIMARY KEY,
		energy_current BIGINT NOT NULL DEFAULT 0 CHECK (energy_current >= 0),
		energy_total_earned BIGINT NOT NULL DEFAULT 0 CHECK (energy_total_earned >= 0),
		active_guardian_id TEXT NOT NULL DEFAULT '',
		streak_current INTEGER NOT NULL DEFAULT 0,
		streak_max INTEGER NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guardians (
		user_id TEXT NOT NULL,
		guardian_id TEXT NOT NULL,
		unlocked BOOLEAN NOT NULL DEFAULT FALSE,
		stage INTEGER NOT NULL DEFAULT 0 CHECK (stage BETWEEN 0 AND 4),
		invested_energy BIGINT NOT NULL DEFAULT 0 CHECK (invested_energy >= 0),
		memories TEXT NOT NULL DEFAULT '[]',
		memo TEXT NOT NULL DEFAULT '',
		unlocked_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, guardian_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		report_date TEXT NOT NULL,
		team_id TEXT NOT NULL,
		metrics TEXT NOT NULL DEFAULT '{}',
		baseline_followers TEXT NOT NULL DEFAULT '{}',
		growth_ig BIGINT NOT NULL DEFAULT 0,
		growth_yt BIGINT NOT NULL DEFAULT 0,
		growth_tiktok BIGINT NOT NULL DEFAULT 0,
		growth_x BIGINT NOT NULL DEFAULT 0,
		comment TEXT NOT NULL DEFAULT '',
		energy_awarded BIGINT NOT NULL DEFAULT 0,
		modify_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, report_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_user_date ON reports (user_id, report_date)`,
	`CREATE TABLE IF NOT EXISTS energy_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount BIGINT NOT NULL,
		source_key TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		balance_after BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_energy_entries_source ON energy_entries (user_id, source_key)`,
	`CREATE INDEX IF NOT EXISTS idx_energy_entries_user_date ON energy_entries (user_id, entry_date)`,
	`CREATE TABLE IF NOT EXISTS daily_missions (
		user_id TEXT NOT NULL,
		mission_date TEXT NOT NULL,
		missions TEXT NOT NULL DEFAULT '[]',
		all_completed BOOLEAN NOT NULL DEFAULT FALSE,
		bonus_claimed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, mission_date)
	)`,
}

// EnsureSchema creates every table and index if missing (idempotent).
// This is a convenience for early development; prefer migrations in production.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
