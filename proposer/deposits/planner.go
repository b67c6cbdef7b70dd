// Package deposits covers the deposit side of the ledger: planning how
// discovered deposits fill an assignment request, and the periodic chain
// scan that records new deposits.
package deposits

import (
	"fmt"
	"math/big"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
)

// Assignment is one planned draw against a deposit.
type Assignment struct {
	DepositID uint64
	Amount    *types.Wei
}

// PlanAssignments chooses which deposits cover a requested amount, given
// the requester's open deposits in ascending id order. An exact single
// match wins, then the oldest single deposit that can cover the request,
// then a combination drawn oldest-first. The plan is only a reservation;
// the ledger re-checks every draw under a row lock at publish time.
func PlanAssignments(candidates []iface.DepositBalance, amount *types.Wei) ([]Assignment, error) {
	if amount.Sign() <= 0 {
		return nil, types.ErrValidation("amount", amount.Decimal(), "must be positive")
	}
	for _, c := range candidates {
		if c.Remaining.Cmp(amount) == 0 {
			return []Assignment{{DepositID: c.ID, Amount: amount.Clone()}}, nil
		}
	}
	for _, c := range candidates {
		if c.Remaining.Cmp(amount) > 0 {
			return []Assignment{{DepositID: c.ID, Amount: amount.Clone()}}, nil
		}
	}
	var plan []Assignment
	left := amount.Clone()
	for _, c := range candidates {
		if left.Sign() == 0 {
			break
		}
		draw := c.Remaining.Clone()
		if draw.Cmp(left) > 0 {
			draw = left.Clone()
		}
		plan = append(plan, Assignment{DepositID: c.ID, Amount: draw})
		left.Int().Sub(left.Int(), draw.Int())
	}
	if left.Sign() != 0 {
		covered := new(big.Int).Sub(amount.Int(), left.Int())
		return nil, types.ErrKind(types.KindDepositInsufficient,
			fmt.Sprintf("open deposits cover %s of %s wei requested", covered, amount))
	}
	return plan, nil
}
