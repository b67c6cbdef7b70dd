package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		label string
		want  Action
	}{
		{label: "transfer", want: ActionTransfer},
		{label: "Transfer", want: ActionTransfer},
		{label: "send", want: ActionTransfer},
		{label: "swap", want: ActionSwap},
		{label: "SWAP", want: ActionSwap},
		{label: "assign_deposit", want: ActionAssignDeposit},
		{label: "AssignDeposit", want: ActionAssignDeposit},
		{label: "create_vault", want: ActionCreateVault},
		{label: "CreateVault", want: ActionCreateVault},
		{label: "stake", want: ActionCustom},
		{label: "", want: ActionCustom},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAction(tt.label), "label %q", tt.label)
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "transfer", ActionTransfer.String())
	assert.Equal(t, "assign_deposit", ActionAssignDeposit.String())
	assert.Equal(t, "create_vault", ActionCreateVault.String())
	assert.Equal(t, "custom", ActionCustom.String())
}
