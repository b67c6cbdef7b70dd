package sql

import (
	"context"
	gosql "database/sql"

	"github.com/pkg/errors"
)

// migrations are applied in order exactly once each; schema_migrations
// records the last applied index. Amount columns are NUMERIC(78,18) token
// units, identity columns are compared through lower().
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS vaults (
		id          BIGINT PRIMARY KEY,
		controllers TEXT[] NOT NULL DEFAULT '{}',
		rules       TEXT NOT NULL DEFAULT '',
		nonce       BIGINT NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS balances (
		vault_id   BIGINT NOT NULL,
		token      TEXT NOT NULL,
		amount     NUMERIC(78,18) NOT NULL DEFAULT 0 CHECK (amount >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS balances_vault_token ON balances (vault_id, lower(token))`,
	`CREATE TABLE IF NOT EXISTS bundles (
		nonce      BIGINT PRIMARY KEY,
		body       BYTEA NOT NULL,
		proposer   TEXT NOT NULL,
		signature  TEXT NOT NULL,
		cid        TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cids (
		cid        TEXT PRIMARY KEY,
		nonce      BIGINT NOT NULL UNIQUE,
		proposer   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS deposits (
		id           BIGSERIAL PRIMARY KEY,
		tx_hash      TEXT NOT NULL,
		transfer_uid TEXT NOT NULL UNIQUE,
		chain_id     BIGINT NOT NULL,
		depositor    TEXT NOT NULL,
		token        TEXT NOT NULL,
		amount       NUMERIC(78,18) NOT NULL CHECK (amount > 0),
		assigned_at  TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS deposits_lookup ON deposits (lower(depositor), lower(token), chain_id, id)`,
	`CREATE TABLE IF NOT EXISTS deposit_assignment_events (
		id             BIGSERIAL PRIMARY KEY,
		deposit_id     BIGINT NOT NULL REFERENCES deposits(id),
		amount         NUMERIC(78,18) NOT NULL CHECK (amount > 0),
		credited_vault BIGINT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS assignment_events_deposit ON deposit_assignment_events (deposit_id)`,
	`CREATE TABLE IF NOT EXISTS proposers (
		proposer  TEXT PRIMARY KEY,
		last_seen TIMESTAMPTZ NOT NULL
	)`,
}

func migrate(ctx context.Context, db *gosql.DB) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return errors.Wrap(err, "could not create migrations table")
	}
	var current int
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), -1) FROM schema_migrations`).Scan(&current); err != nil {
		return errors.Wrap(err, "could not read schema version")
	}
	for v := current + 1; v < len(migrations); v++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.WithError(rbErr).Error("Could not roll back migration")
			}
			return errors.Wrapf(err, "migration %d failed", v)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, v); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.WithError(rbErr).Error("Could not roll back migration")
			}
			return errors.Wrapf(err, "could not record migration %d", v)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "could not commit migration %d", v)
		}
	}
	return nil
}
