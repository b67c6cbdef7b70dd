package sql

import (
	"context"
	gosql "database/sql"
	"strings"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// CreateVault inserts a vault row with its initial controller and nonce 0.
// The id comes from the vault tracker contract, so a duplicate insert means
// the caller raced itself and is reported as an error.
func (s *Store) CreateVault(ctx context.Context, vault uint64, controller string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vaults (id, controllers) VALUES ($1, $2)`,
		int64(vault), pq.Array([]string{strings.ToLower(controller)}))
	return errors.Wrap(err, "could not create vault")
}

// HasVault reports whether the vault row exists.
func (s *Store) HasVault(ctx context.Context, vault uint64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vaults WHERE id = $1)`, int64(vault)).Scan(&exists)
	return exists, errors.Wrap(err, "could not check vault")
}

// Controllers returns the addresses authorized to spend from a vault.
func (s *Store) Controllers(ctx context.Context, vault uint64) ([]string, error) {
	var controllers pq.StringArray
	err := s.db.QueryRowContext(ctx,
		`SELECT controllers FROM vaults WHERE id = $1`, int64(vault)).Scan(&controllers)
	if err == gosql.ErrNoRows {
		return nil, iface.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read controllers")
	}
	return controllers, nil
}

// AddController appends a controller to a vault if not already present.
func (s *Store) AddController(ctx context.Context, vault uint64, controller string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vaults SET controllers = array_append(controllers, lower($2))
		 WHERE id = $1 AND NOT controllers @> ARRAY[lower($2)]`,
		int64(vault), controller)
	if err != nil {
		return errors.Wrap(err, "could not add controller")
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	// Zero rows is either an idempotent re-add or a missing vault.
	has, err := s.HasVault(ctx, vault)
	if err != nil {
		return err
	}
	if !has {
		return iface.ErrNotFound
	}
	return nil
}

// RemoveController removes a controller from a vault.
func (s *Store) RemoveController(ctx context.Context, vault uint64, controller string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vaults SET controllers = array_remove(controllers, lower($2)) WHERE id = $1`,
		int64(vault), controller)
	if err != nil {
		return errors.Wrap(err, "could not remove controller")
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return iface.ErrNotFound
	}
	return nil
}

// SetRules replaces a vault's opaque rules string.
func (s *Store) SetRules(ctx context.Context, vault uint64, rules string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vaults SET rules = $2 WHERE id = $1`, int64(vault), rules)
	if err != nil {
		return errors.Wrap(err, "could not set rules")
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return iface.ErrNotFound
	}
	return nil
}

// VaultRules returns a vault's opaque rules string.
func (s *Store) VaultRules(ctx context.Context, vault uint64) (string, error) {
	var rules string
	err := s.db.QueryRowContext(ctx,
		`SELECT rules FROM vaults WHERE id = $1`, int64(vault)).Scan(&rules)
	if err == gosql.ErrNoRows {
		return "", iface.ErrNotFound
	}
	return rules, errors.Wrap(err, "could not read rules")
}

// VaultNonce returns the last intention nonce applied for a vault.
func (s *Store) VaultNonce(ctx context.Context, vault uint64) (uint64, error) {
	var nonce int64
	err := s.db.QueryRowContext(ctx,
		`SELECT nonce FROM vaults WHERE id = $1`, int64(vault)).Scan(&nonce)
	if err == gosql.ErrNoRows {
		return 0, iface.ErrNotFound
	}
	return uint64(nonce), errors.Wrap(err, "could not read vault nonce")
}

// SetVaultNonce overwrites a vault's last-seen intention nonce. A missing
// vault row is logged and skipped rather than failing the caller, which
// matters inside the bundle-commit transaction.
func (s *Store) SetVaultNonce(ctx context.Context, vault uint64, nonce uint64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vaults SET nonce = $2 WHERE id = $1`, int64(vault), int64(nonce))
	if err != nil {
		return errors.Wrap(err, "could not set vault nonce")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		missingVaultNonceCount.Inc()
		log.WithField("vault", vault).Warn("Skipping nonce update for unknown vault")
	}
	return nil
}

func setVaultNonceTx(ctx context.Context, tx *gosql.Tx, vault, nonce uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE vaults SET nonce = $2 WHERE id = $1`, int64(vault), int64(nonce))
	if err != nil {
		return errors.Wrap(err, "could not set vault nonce")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		missingVaultNonceCount.Inc()
		log.WithField("vault", vault).Warn("Skipping nonce update for unknown vault")
	}
	return nil
}

// VaultsByController lists the vault ids a controller can spend from.
func (s *Store) VaultsByController(ctx context.Context, controller string) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM vaults WHERE controllers @> ARRAY[lower($1)] ORDER BY id`,
		controller)
	if err != nil {
		return nil, errors.Wrap(err, "could not list vaults")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.WithError(err).Error("Could not close vault rows")
		}
	}()
	var out []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, uint64(id))
	}
	return out, rows.Err()
}

// MarkProposerSeen upserts the proposer's liveness row.
func (s *Store) MarkProposerSeen(ctx context.Context, proposer string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proposers (proposer, last_seen) VALUES (lower($1), now())
		 ON CONFLICT (proposer) DO UPDATE SET last_seen = now()`,
		proposer)
	return errors.Wrap(err, "could not mark proposer seen")
}
