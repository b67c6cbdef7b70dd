package types

import "strings"

// Action classifies an intention's free-form action label into the
// variants the pipeline treats specially. Unknown labels are Custom and
// follow the generic transfer pipeline.
type Action int

const (
	// ActionTransfer moves balances between vaults or out to an address.
	ActionTransfer Action = iota
	// ActionSwap is validated and bundled like a transfer.
	ActionSwap
	// ActionAssignDeposit credits discovered deposits to a vault.
	ActionAssignDeposit
	// ActionCreateVault creates a vault controlled by the signer.
	ActionCreateVault
	// ActionCustom is any other label.
	ActionCustom
)

// ParseAction maps an action label onto its variant. Matching is
// case-insensitive and ignores underscores, so both "AssignDeposit" and
// "assign_deposit" parse the same way.
func ParseAction(label string) Action {
	switch strings.ReplaceAll(strings.ToLower(label), "_", "") {
	case "transfer", "send":
		return ActionTransfer
	case "swap":
		return ActionSwap
	case "assigndeposit":
		return ActionAssignDeposit
	case "createvault":
		return ActionCreateVault
	default:
		return ActionCustom
	}
}

func (a Action) String() string {
	switch a {
	case ActionTransfer:
		return "transfer"
	case ActionSwap:
		return "swap"
	case ActionAssignDeposit:
		return "assign_deposit"
	case ActionCreateVault:
		return "create_vault"
	default:
		return "custom"
	}
}
