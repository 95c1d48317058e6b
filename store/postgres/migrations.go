package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Turnstile store.
var Migrations = migrate.NewGroup("turnstile")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_turnstile_accounts",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS turnstile_accounts (
    id         TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL DEFAULT '',
    app_id     TEXT NOT NULL DEFAULT '',
    balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    version    BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_turnstile_accounts_tenant_app ON turnstile_accounts (tenant_id, app_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS turnstile_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_turnstile_entries",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS turnstile_entries (
    id            TEXT PRIMARY KEY,
    account_id    TEXT NOT NULL DEFAULT '',
    delta         BIGINT NOT NULL DEFAULT 0,
    balance_after BIGINT NOT NULL DEFAULT 0,
    reason        TEXT NOT NULL DEFAULT '',
    app_id        TEXT NOT NULL DEFAULT '',
    timestamp     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_turnstile_entries_account ON turnstile_entries (account_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_turnstile_entries_ts ON turnstile_entries (timestamp DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS turnstile_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_turnstile_gate_events",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS turnstile_gate_events (
    id        TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL DEFAULT '',
    app_id    TEXT NOT NULL DEFAULT '',
    feature   TEXT NOT NULL DEFAULT '',
    allowed   BOOLEAN NOT NULL DEFAULT FALSE,
    reason    TEXT NOT NULL DEFAULT '',
    tier      TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_turnstile_gate_events_tenant ON turnstile_gate_events (tenant_id, app_id, feature, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_turnstile_gate_events_ts ON turnstile_gate_events (timestamp DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS turnstile_gate_events`)
				return err
			},
		},
	)
}
