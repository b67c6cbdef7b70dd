// Package db defines the storage layer of the proposer node. The exposed
// methods do not have an opinion of the underlying engine but reflect the
// settlement logic: balances, vaults, bundles, and the deposit ledger.
package db

import (
	"context"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/db/sql"
)

// NewStore opens the Postgres-backed store at dbURL and runs any pending
// schema migrations.
func NewStore(ctx context.Context, dbURL string) (iface.Store, error) {
	return sql.NewStore(ctx, dbURL)
}
