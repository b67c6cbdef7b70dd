package sql

import (
	"context"
	gosql "database/sql"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
)

// InsertDepositIfMissing records a discovered deposit, idempotent on its
// transfer uid, and returns the deposit id either way.
func (s *Store) InsertDepositIfMissing(ctx context.Context, d *types.Deposit) (uint64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO deposits (tx_hash, transfer_uid, chain_id, depositor, token, amount)
		 VALUES ($1, $2, $3, lower($4), lower($5), $6)
		 ON CONFLICT (transfer_uid) DO NOTHING RETURNING id`,
		d.TxHash, d.TransferUID, int64(d.ChainID), d.Depositor, d.Token, d.Amount.Decimal()).Scan(&id)
	if err == gosql.ErrNoRows {
		// Already recorded by an earlier scan.
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM deposits WHERE transfer_uid = $1`, d.TransferUID).Scan(&id)
	}
	if err != nil {
		return 0, errors.Wrap(err, "could not insert deposit")
	}
	depositsInsertedCount.Inc()
	return uint64(id), nil
}

// Deposit returns a deposit row by id.
func (s *Store) Deposit(ctx context.Context, id uint64) (*types.Deposit, error) {
	d := &types.Deposit{}
	var (
		depositID, chainID int64
		amount             string
		assignedAt         gosql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tx_hash, transfer_uid, chain_id, depositor, token, amount::text, assigned_at
		 FROM deposits WHERE id = $1`, int64(id)).
		Scan(&depositID, &d.TxHash, &d.TransferUID, &chainID, &d.Depositor, &d.Token, &amount, &assignedAt)
	if err == gosql.ErrNoRows {
		return nil, errors.Wrapf(iface.ErrNotFound, "deposit %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read deposit")
	}
	d.ID = uint64(depositID)
	d.ChainID = uint64(chainID)
	if d.Amount, err = scanWei(amount); err != nil {
		return nil, err
	}
	if assignedAt.Valid {
		t := assignedAt.Time
		d.AssignedAt = &t
	}
	return d, nil
}

// DepositRemaining returns deposit.amount minus the sum of its assignment
// events.
func (s *Store) DepositRemaining(ctx context.Context, id uint64) (*types.Wei, error) {
	var remaining string
	err := s.db.QueryRowContext(ctx,
		`SELECT (d.amount - COALESCE(SUM(e.amount), 0))::text
		 FROM deposits d LEFT JOIN deposit_assignment_events e ON e.deposit_id = d.id
		 WHERE d.id = $1 GROUP BY d.id, d.amount`, int64(id)).Scan(&remaining)
	if err == gosql.ErrNoRows {
		return nil, errors.Wrapf(iface.ErrNotFound, "deposit %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not compute deposit remainder")
	}
	return scanWei(remaining)
}

// DepositsWithRemaining lists the deposits of a depositor for a token and
// chain that still have an unassigned remainder, oldest first. The planner
// consumes this in id order.
func (s *Store) DepositsWithRemaining(ctx context.Context, depositor, token string, chainID uint64) ([]iface.DepositBalance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, (d.amount - COALESCE(SUM(e.amount), 0))::text
		 FROM deposits d LEFT JOIN deposit_assignment_events e ON e.deposit_id = d.id
		 WHERE lower(d.depositor) = lower($1) AND lower(d.token) = lower($2) AND d.chain_id = $3
		 GROUP BY d.id, d.amount
		 HAVING d.amount - COALESCE(SUM(e.amount), 0) > 0
		 ORDER BY d.id`,
		depositor, token, int64(chainID))
	if err != nil {
		return nil, errors.Wrap(err, "could not list deposits")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.WithError(err).Error("Could not close deposit rows")
		}
	}()
	var out []iface.DepositBalance
	for rows.Next() {
		var (
			id        int64
			remaining string
		)
		if err := rows.Scan(&id, &remaining); err != nil {
			return nil, err
		}
		w, err := scanWei(remaining)
		if err != nil {
			return nil, err
		}
		out = append(out, iface.DepositBalance{ID: uint64(id), Remaining: w})
	}
	return out, rows.Err()
}

// NextDepositWithRemaining returns the oldest deposit of a depositor for a
// token and chain that still has an unassigned remainder.
func (s *Store) NextDepositWithRemaining(ctx context.Context, depositor, token string, chainID uint64) (*iface.DepositBalance, error) {
	var (
		id        int64
		remaining string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT d.id, (d.amount - COALESCE(SUM(e.amount), 0))::text
		 FROM deposits d LEFT JOIN deposit_assignment_events e ON e.deposit_id = d.id
		 WHERE lower(d.depositor) = lower($1) AND lower(d.token) = lower($2) AND d.chain_id = $3
		 GROUP BY d.id, d.amount
		 HAVING d.amount - COALESCE(SUM(e.amount), 0) > 0
		 ORDER BY d.id LIMIT 1`,
		depositor, token, int64(chainID)).Scan(&id, &remaining)
	if err == gosql.ErrNoRows {
		return nil, errors.Wrapf(iface.ErrNotFound, "no open deposit for %s", depositor)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not find next deposit")
	}
	w, err := scanWei(remaining)
	if err != nil {
		return nil, err
	}
	return &iface.DepositBalance{ID: uint64(id), Remaining: w}, nil
}

// DepositWithSufficientRemaining returns the oldest deposit of a depositor
// for a token and chain whose unassigned remainder covers min on its own.
func (s *Store) DepositWithSufficientRemaining(ctx context.Context, depositor, token string, chainID uint64, min *types.Wei) (*iface.DepositBalance, error) {
	var (
		id        int64
		remaining string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT d.id, (d.amount - COALESCE(SUM(e.amount), 0))::text
		 FROM deposits d LEFT JOIN deposit_assignment_events e ON e.deposit_id = d.id
		 WHERE lower(d.depositor) = lower($1) AND lower(d.token) = lower($2) AND d.chain_id = $3
		 GROUP BY d.id, d.amount
		 HAVING d.amount - COALESCE(SUM(e.amount), 0) >= $4
		 ORDER BY d.id LIMIT 1`,
		depositor, token, int64(chainID), min.Decimal()).Scan(&id, &remaining)
	if err == gosql.ErrNoRows {
		return nil, errors.Wrapf(iface.ErrNotFound, "no deposit covering %s for %s", min, depositor)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not find covering deposit")
	}
	w, err := scanWei(remaining)
	if err != nil {
		return nil, err
	}
	return &iface.DepositBalance{ID: uint64(id), Remaining: w}, nil
}

// AssignDeposit credits part of a deposit to a vault under a row lock so
// partial fills never double-credit.
func (s *Store) AssignDeposit(ctx context.Context, depositID uint64, amount *types.Wei, creditedVault uint64) error {
	return s.runTx(ctx, func(tx *gosql.Tx) error {
		return assignDepositTx(ctx, tx, depositID, amount, creditedVault)
	})
}

func assignDepositTx(ctx context.Context, tx *gosql.Tx, depositID uint64, amount *types.Wei, creditedVault uint64) error {
	var total string
	err := tx.QueryRowContext(ctx,
		`SELECT amount::text FROM deposits WHERE id = $1 FOR UPDATE`, int64(depositID)).Scan(&total)
	if err == gosql.ErrNoRows {
		return errors.Wrapf(iface.ErrNotFound, "deposit %d", depositID)
	}
	if err != nil {
		return errors.Wrap(err, "could not lock deposit")
	}
	totalWei, err := scanWei(total)
	if err != nil {
		return err
	}
	var assigned string
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM deposit_assignment_events WHERE deposit_id = $1`,
		int64(depositID)).Scan(&assigned); err != nil {
		return errors.Wrap(err, "could not sum assignments")
	}
	assignedWei, err := scanWei(assigned)
	if err != nil {
		return err
	}
	remaining := totalWei.Clone()
	remaining.Int().Sub(remaining.Int(), assignedWei.Int())
	if amount.Sign() <= 0 || amount.Cmp(remaining) > 0 {
		return types.ErrKind(types.KindDepositInsufficient, "assignment exceeds deposit remainder")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO deposit_assignment_events (deposit_id, amount, credited_vault) VALUES ($1, $2, $3)`,
		int64(depositID), amount.Decimal(), int64(creditedVault)); err != nil {
		return errors.Wrap(err, "could not insert assignment event")
	}
	if amount.Cmp(remaining) == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE deposits SET assigned_at = now() WHERE id = $1`, int64(depositID)); err != nil {
			return errors.Wrap(err, "could not mark deposit assigned")
		}
	}
	return nil
}
