// Package sql implements the proposer store on Postgres. Amounts are
// persisted as NUMERIC(78,18) token units and converted to and from the
// wei scale at the boundary; vault and token identifiers are compared
// case-insensitively.
package sql

import (
	"context"
	gosql "database/sql"

	lru "github.com/hashicorp/golang-lru"
	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "db")

// bundleCacheSize bounds the in-memory cache of immutable bundle rows.
const bundleCacheSize = 256

// Store implements iface.Store on a Postgres connection pool.
type Store struct {
	db          *gosql.DB
	bundleCache *lru.Cache
}

// Store must satisfy the full storage interface.
var _ iface.Store = (*Store)(nil)

// NewStore connects to Postgres at dbURL, verifies the connection, and runs
// pending schema migrations.
func NewStore(ctx context.Context, dbURL string) (*Store, error) {
	db, err := gosql.Open("postgres", dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "could not open database")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "database unreachable")
	}
	if err := migrate(ctx, db); err != nil {
		return nil, errors.Wrap(err, "could not run migrations")
	}
	cache, err := lru.New(bundleCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, bundleCache: cache}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanWei converts a NUMERIC(78,18) column rendered as text into wei.
func scanWei(s string) (*types.Wei, error) {
	w, err := types.WeiFromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt numeric %q", s)
	}
	return w, nil
}

// runTx runs fn inside a transaction, rolling back on error.
func (s *Store) runTx(ctx context.Context, fn func(tx *gosql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Error("Could not roll back transaction")
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "could not commit transaction")
}
