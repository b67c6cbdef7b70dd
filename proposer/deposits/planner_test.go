package deposits

import (
	"testing"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates(remainders ...uint64) []iface.DepositBalance {
	out := make([]iface.DepositBalance, len(remainders))
	for i, r := range remainders {
		out[i] = iface.DepositBalance{ID: uint64(i + 1), Remaining: types.WeiFromUint64(r)}
	}
	return out
}

func TestPlanAssignmentsExactMatchWins(t *testing.T) {
	// Deposit 3 matches exactly even though deposit 1 could cover it.
	plan, err := PlanAssignments(candidates(900, 200, 500), types.WeiFromUint64(500))
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, uint64(3), plan[0].DepositID)
	assert.Equal(t, "500", plan[0].Amount.String())
}

func TestPlanAssignmentsFirstSufficient(t *testing.T) {
	plan, err := PlanAssignments(candidates(100, 900, 800), types.WeiFromUint64(500))
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, uint64(2), plan[0].DepositID)
}

func TestPlanAssignmentsCombination(t *testing.T) {
	// 500 + 600 covering 1000 draws 500 then 500, oldest first.
	plan, err := PlanAssignments(candidates(500, 600), types.WeiFromUint64(1000))
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, uint64(1), plan[0].DepositID)
	assert.Equal(t, "500", plan[0].Amount.String())
	assert.Equal(t, uint64(2), plan[1].DepositID)
	assert.Equal(t, "500", plan[1].Amount.String())
}

func TestPlanAssignmentsInsufficient(t *testing.T) {
	_, err := PlanAssignments(candidates(100, 200), types.WeiFromUint64(1000))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindDepositInsufficient))

	_, err = PlanAssignments(nil, types.WeiFromUint64(1))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindDepositInsufficient))
}

func TestPlanAssignmentsRejectsNonPositive(t *testing.T) {
	_, err := PlanAssignments(candidates(100), types.WeiFromUint64(0))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindValidation))
}
