package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"insightflow/api/models"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SecondsBetween returns an SQL expression for the elapsed seconds between
// two timestamp columns.
func (d Dialect) SecondsBetween(start, end string) string {
	if d == DialectPostgres {
		return fmt.Sprintf("EXTRACT(EPOCH FROM (%s - %s))", end, start)
	}
	return fmt.Sprintf("((julianday(%s) - julianday(%s)) * 86400.0)", end, start)
}

func (d Dialect) columnTypes() *strings.Replacer {
	if d == DialectPostgres {
		return strings.NewReplacer("{ts}", "TIMESTAMPTZ", "{json}", "JSONB", "{float}", "DOUBLE PRECISION")
	}
	return strings.NewReplacer("{ts}", "TIMESTAMP", "{json}", "TEXT", "{float}", "REAL")
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		device_type TEXT NOT NULL DEFAULT 'desktop',
		browser TEXT NOT NULL DEFAULT 'Other',
		referrer_source TEXT NOT NULL DEFAULT 'direct',
		started_at {ts} NOT NULL,
		ended_at {ts},
		is_churned BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		activity_name TEXT NOT NULL,
		activity_type TEXT NOT NULL DEFAULT 'page_view',
		page_path TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		recorded_at {ts} NOT NULL,
		drop_off BOOLEAN NOT NULL DEFAULT FALSE,
		metadata {json}
	)`,
	`CREATE TABLE IF NOT EXISTS conversion_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		funnel_step INTEGER NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT TRUE,
		revenue {float},
		recorded_at {ts} NOT NULL,
		metadata {json}
	)`,
	`CREATE TABLE IF NOT EXISTS funnel_steps (
		step_order INTEGER PRIMARY KEY,
		step_name TEXT NOT NULL,
		users_entered BIGINT NOT NULL DEFAULT 0,
		users_completed BIGINT NOT NULL DEFAULT 0,
		drop_off_count BIGINT NOT NULL DEFAULT 0,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT,
		feedback_type TEXT NOT NULL,
		rating INTEGER,
		comment TEXT,
		page_path TEXT,
		recorded_at {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_started ON sessions (user_id, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_session_recorded ON activities (session_id, recorded_at)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_drop_off ON activities (drop_off)`,
	`CREATE INDEX IF NOT EXISTS idx_conversion_events_user ON conversion_events (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_conversion_events_recorded ON conversion_events (recorded_at)`,
}

// Migrate creates the event store tables and seeds the canonical funnel
// steps. Safe to run on every start.
func (c *DBClient) Migrate(ctx context.Context, now time.Time) error {
	types := c.Dialect.columnTypes()
	for _, stmt := range schemaStatements {
		if _, err := c.DB.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	for _, step := range models.DefaultFunnelSteps {
		_, err := c.DB.ExecContext(ctx, `
			INSERT INTO funnel_steps (step_order, step_name, users_entered, users_completed, drop_off_count, updated_at)
			VALUES ($1, $2, 0, 0, 0, $3)
			ON CONFLICT (step_order) DO NOTHING
		`, step.StepOrder, step.StepName, now.UTC())
		if err != nil {
			return fmt.Errorf("failed to seed funnel step %d: %w", step.StepOrder, err)
		}
	}

	c.log.Info("Event store schema ready", "dialect", string(c.Dialect))
	return nil
}
