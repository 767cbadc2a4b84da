package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

var commonMigrations = []string{
	`CREATE TABLE IF NOT EXISTS time_slots (
		id TEXT PRIMARY KEY,
		start_ms BIGINT NOT NULL,
		end_ms BIGINT,
		category TEXT NOT NULL,
		smart_guess_id TEXT,
		location_json TEXT,
		category_set_by_user BOOLEAN NOT NULL DEFAULT FALSE,
		activity TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_time_slots_start ON time_slots (start_ms)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS smart_guesses (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		location_json TEXT NOT NULL,
		last_used_ms BIGINT NOT NULL,
		error_count INTEGER NOT NULL DEFAULT 0,
		embedding vector(3) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_smart_guesses_lat_lon ON smart_guesses (latitude, longitude)`,
	`CREATE INDEX IF NOT EXISTS idx_smart_guesses_last_used ON smart_guesses (last_used_ms)`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS smart_guesses (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		location_json TEXT NOT NULL,
		last_used_ms INTEGER NOT NULL,
		error_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_smart_guesses_lat_lon ON smart_guesses (latitude, longitude)`,
	`CREATE INDEX IF NOT EXISTS idx_smart_guesses_last_used ON smart_guesses (last_used_ms)`,
}

// Migrate creates the tables for the given dialect. Postgres requires the
// vector extension to be installed first.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) error {
	statements := append([]string{}, commonMigrations...)
	switch dialect {
	case Postgres:
		statements = append(statements, postgresMigrations...)
	case SQLite:
		statements = append(statements, sqliteMigrations...)
	default:
		return fmt.Errorf("unknown dialect: %s", dialect)
	}

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i, err)
		}
	}

	logger.Info("Database schema ready", "dialect", dialect, "statements", len(statements))
	return nil
}
