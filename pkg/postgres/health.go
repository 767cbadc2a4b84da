package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// HealthStatus represents the health of the slot store database
type HealthStatus struct {
	Connected     bool      `json:"connected"`
	ServerVersion string    `json:"server_version,omitempty"`
	Database      string    `json:"database"`
	VectorVersion string    `json:"vector_version,omitempty"`
	Tables        []string  `json:"tables,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// requiredTables are created by the storage migrations
var requiredTables = []string{"time_slots", "smart_guesses"}

// Ready reports whether smart guesses can be stored and searched: the
// database answers, pgvector is installed and the migrations have run.
func (s *HealthStatus) Ready() bool {
	return s.Connected && s.Error == "" && s.VectorVersion != "" && len(s.Tables) == len(requiredTables)
}

// HealthCheck reports the connection, the pgvector extension that
// EnsureExtensions installs, and which timeline tables exist
func (c *PostgresClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Database:  c.config.PostgresDB,
		Timestamp: time.Now(),
	}

	if c.db == nil {
		status.Error = "not connected"
		return status, nil
	}

	if err := c.db.PingContext(ctx); err != nil {
		status.Error = fmt.Sprintf("ping failed: %v", err)
		return status, nil
	}
	status.Connected = true

	if err := c.db.QueryRowContext(ctx, "SHOW server_version").Scan(&status.ServerVersion); err != nil {
		status.Error = fmt.Sprintf("failed to get version: %v", err)
		return status, nil
	}

	err := c.db.QueryRowContext(ctx,
		"SELECT extversion FROM pg_extension WHERE extname = 'vector'").Scan(&status.VectorVersion)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		status.Error = "vector extension not installed"
		return status, nil
	case err != nil:
		status.Error = fmt.Sprintf("failed to read vector extension: %v", err)
		return status, nil
	}

	for _, table := range requiredTables {
		var exists bool
		if err := c.db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists); err != nil {
			status.Error = fmt.Sprintf("failed to look up table %s: %v", table, err)
			return status, nil
		}
		if exists {
			status.Tables = append(status.Tables, table)
		}
	}

	return status, nil
}
