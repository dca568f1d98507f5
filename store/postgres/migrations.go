package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the trigger store.
// It can be registered with the grove extension for orchestrated migration
// management (locking, version tracking, rollback support).
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
    payload       JSONB,
    tries         INT NOT NULL DEFAULT 0,
    locked        BOOLEAN NOT NULL DEFAULT FALSE,
    delivered     BOOLEAN NOT NULL DEFAULT FALSE,
    error         BOOLEAN NOT NULL DEFAULT FALSE,
    archived      BOOLEAN NOT NULL DEFAULT FALSE,
    next_retry_at TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_event_log_fetch
    ON event_log (locked, next_retry_at, created_at)
    WHERE delivered = FALSE AND error = FALSE AND archived = FALSE;
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
    status     INT NOT NULL DEFAULT 0,
    request    JSONB,
    response   JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    scheduled_time     TIMESTAMPTZ NOT NULL,
    additional_payload JSONB,
    tries              INT NOT NULL DEFAULT 0,
    locked             BOOLEAN NOT NULL DEFAULT FALSE,
    delivered          BOOLEAN NOT NULL DEFAULT FALSE,
    error              BOOLEAN NOT NULL DEFAULT FALSE,
    dead               BOOLEAN NOT NULL DEFAULT FALSE,
    cancelled          BOOLEAN NOT NULL DEFAULT FALSE,
    next_retry_at      TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (name, scheduled_time)
);

CREATE INDEX IF NOT EXISTS idx_hdb_scheduled_events_fetch
    ON hdb_scheduled_events (locked, scheduled_time, next_retry_at)
    WHERE delivered = FALSE AND error = FALSE AND dead = FALSE AND cancelled = FALSE;
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
    status     INT NOT NULL DEFAULT 0,
    request    JSONB,
    response   JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    headers           JSONB NOT NULL DEFAULT '[]',
    retry_conf        JSONB NOT NULL DEFAULT '{}',
    schedule          JSONB NOT NULL DEFAULT '{}',
    payload           JSONB,
    tolerance_seconds INT NOT NULL DEFAULT 21600,
    payload_schema    JSONB,
    signing_secret    TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
CREATE OR REPLACE VIEW hdb_scheduled_events_stats AS
SELECT name,
       COUNT(*) FILTER (
           WHERE delivered = FALSE AND error = FALSE
             AND dead = FALSE AND cancelled = FALSE
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
