package sql

import (
	"context"
	gosql "database/sql"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
)

// PublishBundle commits a published bundle in one transaction: the bundle
// and cid rows, every proof transfer (balance moves, deposit assignments),
// and the per-vault intention nonces. The insert is keyed by nonce, so a
// replay of an already committed bundle is a no-op and quarantined payloads
// can be re-applied safely.
func (s *Store) PublishBundle(ctx context.Context, plan *iface.PublishPlan) error {
	if plan == nil {
		return errors.New("nil publish plan")
	}
	committed := false
	err := s.runTx(ctx, func(tx *gosql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO bundles (nonce, body, proposer, signature, cid)
			 VALUES ($1, $2, lower($3), $4, $5) ON CONFLICT (nonce) DO NOTHING`,
			int64(plan.Nonce), plan.Body, plan.Proposer, plan.Signature, plan.CID)
		if err != nil {
			return errors.Wrap(err, "could not insert bundle")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			log.WithField("nonce", plan.Nonce).Info("Bundle already committed, skipping")
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cids (cid, nonce, proposer) VALUES ($1, $2, lower($3))
			 ON CONFLICT (cid) DO NOTHING`,
			plan.CID, int64(plan.Nonce), plan.Proposer); err != nil {
			return errors.Wrap(err, "could not insert cid")
		}
		for _, exec := range plan.Executions {
			if err := applyExecutionTx(ctx, tx, exec); err != nil {
				return errors.Wrapf(err, "could not apply execution for vault %d", exec.From)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO proposers (proposer, last_seen) VALUES (lower($1), now())
			 ON CONFLICT (proposer) DO UPDATE SET last_seen = now()`,
			plan.Proposer); err != nil {
			return errors.Wrap(err, "could not mark proposer seen")
		}
		committed = true
		return nil
	})
	if err != nil {
		return err
	}
	if committed {
		s.bundleCache.Remove(plan.Nonce)
	}
	return nil
}

// applyExecutionTx applies one execution's proof. Transfers carrying a
// deposit id are deposit assignments and credit their target vault;
// everything else moves balances, debiting only for external destinations.
func applyExecutionTx(ctx context.Context, tx *gosql.Tx, exec *types.ExecutionObject) error {
	for _, t := range exec.Proof {
		switch {
		case t.DepositID != nil:
			if t.ToVault == nil {
				return errors.New("deposit assignment without a vault destination")
			}
			if err := assignDepositTx(ctx, tx, *t.DepositID, t.Amount, *t.ToVault); err != nil {
				return err
			}
			if err := creditTx(ctx, tx, *t.ToVault, t.Token, t.Amount); err != nil {
				return err
			}
		case t.Internal():
			if err := debitTx(ctx, tx, t.From, t.Token, t.Amount); err != nil {
				return err
			}
			if err := creditTx(ctx, tx, *t.ToVault, t.Token, t.Amount); err != nil {
				return err
			}
		default:
			if err := debitTx(ctx, tx, t.From, t.Token, t.Amount); err != nil {
				return err
			}
		}
	}
	return setVaultNonceTx(ctx, tx, exec.From, exec.Intention.Nonce)
}
