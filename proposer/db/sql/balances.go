package sql

import (
	"context"
	gosql "database/sql"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
)

// Balance returns the amount a vault holds of a token, zero if the balance
// row was never created.
func (s *Store) Balance(ctx context.Context, vault uint64, token string) (*types.Wei, error) {
	var amount string
	err := s.db.QueryRowContext(ctx,
		`SELECT amount::text FROM balances WHERE vault_id = $1 AND lower(token) = lower($2)`,
		int64(vault), token).Scan(&amount)
	if err == gosql.ErrNoRows {
		return types.WeiFromUint64(0), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read balance")
	}
	return scanWei(amount)
}

// Balances returns every token balance a vault holds, token-ordered.
func (s *Store) Balances(ctx context.Context, vault uint64) ([]iface.BalanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, amount::text FROM balances WHERE vault_id = $1 ORDER BY lower(token)`,
		int64(vault))
	if err != nil {
		return nil, errors.Wrap(err, "could not read balances")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.WithError(err).Error("Could not close balance rows")
		}
	}()
	var out []iface.BalanceRecord
	for rows.Next() {
		var token, amount string
		if err := rows.Scan(&token, &amount); err != nil {
			return nil, err
		}
		w, err := scanWei(amount)
		if err != nil {
			return nil, err
		}
		out = append(out, iface.BalanceRecord{Token: token, Amount: w})
	}
	return out, rows.Err()
}

// SetBalance upserts a vault's balance for a token to an absolute amount.
func (s *Store) SetBalance(ctx context.Context, vault uint64, token string, amount *types.Wei) error {
	if amount.Sign() < 0 {
		return errors.New("balance must be non-negative")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balances (vault_id, token, amount, updated_at) VALUES ($1, lower($2), $3, now())
		 ON CONFLICT (vault_id, lower(token)) DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()`,
		int64(vault), token, amount.Decimal())
	return errors.Wrap(err, "could not set balance")
}

// ApplyTransfer atomically debits from and, for vault destinations,
// credits toVault. External destinations debit only. Fails without side
// effects when the source balance cannot cover the amount.
func (s *Store) ApplyTransfer(ctx context.Context, from uint64, toVault *uint64, token string, amount *types.Wei) error {
	return s.runTx(ctx, func(tx *gosql.Tx) error {
		if err := debitTx(ctx, tx, from, token, amount); err != nil {
			return err
		}
		if toVault != nil {
			return creditTx(ctx, tx, *toVault, token, amount)
		}
		return nil
	})
}

func debitTx(ctx context.Context, tx *gosql.Tx, vault uint64, token string, amount *types.Wei) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE balances SET amount = amount - $3, updated_at = now()
		 WHERE vault_id = $1 AND lower(token) = lower($2) AND amount >= $3`,
		int64(vault), token, amount.Decimal())
	if err != nil {
		return errors.Wrap(err, "could not debit balance")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrKind(types.KindInsufficientBalance,
			"source balance below transfer amount")
	}
	return nil
}

func creditTx(ctx context.Context, tx *gosql.Tx, vault uint64, token string, amount *types.Wei) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO balances (vault_id, token, amount, updated_at) VALUES ($1, lower($2), $3, now())
		 ON CONFLICT (vault_id, lower(token)) DO UPDATE
		 SET amount = balances.amount + EXCLUDED.amount, updated_at = now()`,
		int64(vault), token, amount.Decimal())
	return errors.Wrap(err, "could not credit balance")
}
