// Package store holds the optional infrastructure clients: Postgres for
// attempt history and Redis for length memoization and the report queue.
// Both are optional; the bot runs fully without them.
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const attemptSchema = `
CREATE TABLE IF NOT EXISTS attempts (
	id           UUID PRIMARY KEY,
	user_name    TEXT NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	retries_used INT NOT NULL DEFAULT 0,
	outcome      TEXT NOT NULL,
	detail       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS attempts_user_idx ON attempts (user_name, created_at DESC);
`

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB connects to Postgres and ensures the attempt history schema exists.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, attemptSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{Client: db}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
