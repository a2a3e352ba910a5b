package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		fullname VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS todos (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		priority VARCHAR(10) NOT NULL DEFAULT 'MEDIUM'
			CHECK (priority IN ('LOW', 'MEDIUM', 'HIGH')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_user_id ON todos (user_id, created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_completed ON todos (completed)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_priority ON todos (priority)`,
	`CREATE TABLE IF NOT EXISTS todo_activity (
		id BIGSERIAL PRIMARY KEY,
		event_id UUID NOT NULL UNIQUE,
		todo_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		event_type VARCHAR(32) NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todo_activity_todo_id ON todo_activity (todo_id, occurred_at)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, database *sql.DB) error {
	for i, stmt := range schema {
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	logrus.WithField("steps", len(schema)).Info("Database schema up to date")
	return nil
}
