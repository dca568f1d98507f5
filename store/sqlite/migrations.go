package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the trigger store (SQLite).
var Migrations = migrate.NewGroup("trigger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_event_log",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS event_log (
    id            TEXT PRIMARY KEY,
    schema_name   TEXT NOT NULL DEFAULT '',
    table_name    TEXT NOT NULL DEFAULT '',
    trigger_name  TEXT NOT NULL DEFAULT '',
    payload       TEXT,
    tries         INTEGER NOT NULL DEFAULT 0,
    locked        INTEGER NOT NULL DEFAULT 0,
    delivered     INTEGER NOT NULL DEFAULT 0,
    error         INTEGER NOT NULL DEFAULT 0,
    archived      INTEGER NOT NULL DEFAULT 0,
    next_retry_at TEXT,
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_event_log_fetch ON event_log (locked, next_retry_at, created_at);
CREATE INDEX IF NOT EXISTS idx_event_log_trigger ON event_log (trigger_name);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS event_log`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_event_invocation_logs",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS event_invocation_logs (
    id         TEXT PRIMARY KEY,
    event_id   TEXT NOT NULL,
    status     INTEGER NOT NULL DEFAULT 0,
    request    TEXT,
    response   TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_event_invocation_logs_event ON event_invocation_logs (event_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS event_invocation_logs`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hdb_scheduled_events",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hdb_scheduled_events (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    scheduled_time     TEXT NOT NULL,
    additional_payload TEXT,
    tries              INTEGER NOT NULL DEFAULT 0,
    locked             INTEGER NOT NULL DEFAULT 0,
    delivered          INTEGER NOT NULL DEFAULT 0,
    error              INTEGER NOT NULL DEFAULT 0,
    dead               INTEGER NOT NULL DEFAULT 0,
    cancelled          INTEGER NOT NULL DEFAULT 0,
    next_retry_at      TEXT,
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE (name, scheduled_time)
);

CREATE INDEX IF NOT EXISTS idx_hdb_scheduled_events_fetch ON hdb_scheduled_events (locked, scheduled_time, next_retry_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hdb_scheduled_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hdb_scheduled_event_invocation_logs",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hdb_scheduled_event_invocation_logs (
    id         TEXT PRIMARY KEY,
    event_id   TEXT NOT NULL,
    status     INTEGER NOT NULL DEFAULT 0,
    request    TEXT,
    response   TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_hdb_scheduled_event_invocation_logs_event
    ON hdb_scheduled_event_invocation_logs (event_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hdb_scheduled_event_invocation_logs`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hdb_scheduled_trigger",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hdb_scheduled_trigger (
    name              TEXT PRIMARY KEY,
    webhook           TEXT NOT NULL DEFAULT '',
    headers           TEXT NOT NULL DEFAULT '[]',
    retry_conf        TEXT NOT NULL DEFAULT '{}',
    schedule          TEXT NOT NULL DEFAULT '{}',
    payload           TEXT,
    tolerance_seconds INTEGER NOT NULL DEFAULT 21600,
    payload_schema    TEXT,
    signing_secret    TEXT NOT NULL DEFAULT '',
    created_at        TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hdb_scheduled_trigger`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hdb_scheduled_events_stats",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE VIEW IF NOT EXISTS hdb_scheduled_events_stats AS
SELECT name,
       COUNT(*) FILTER (
           WHERE delivered = 0 AND error = 0 AND dead = 0 AND cancelled = 0
       ) AS upcoming_events_count,
       MAX(scheduled_time) AS max_scheduled_time
FROM hdb_scheduled_events
GROUP BY name;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP VIEW IF EXISTS hdb_scheduled_events_stats`)
				return err
			},
		},
	)
}
