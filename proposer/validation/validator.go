// Package validation implements the pure structural checks the intention
// pipeline runs before touching any state: address, signature, and amount
// formats, intention and bundle shape, and the stricter shape policy for
// deposit assignments. No function here performs I/O.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/latticelabs/lattice/proposer/types"
)

// Amounts are bounded by the store's NUMERIC(78,18) columns: up to 60
// integer digits and 18 fractional digits.
var amountRegex = regexp.MustCompile(`^\d{1,60}(\.\d{0,18})?$`)

var signatureRegex = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{130}$`)

// ZeroAddress is the canonical form of the native-asset token address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ValidateAddress checks s is 20-byte hex, with or without the 0x prefix,
// and returns its canonical lowercase 0x-prefixed form.
func ValidateAddress(field, s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", types.ErrValidation(field, s, "not a 20-byte hex address")
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// ValidateSignature checks s is a 65-byte hex signature and returns its
// lowercase 0x-prefixed form. Recovery id conventions are checked at
// verification time, not here.
func ValidateSignature(field, s string) (string, error) {
	if !signatureRegex.MatchString(s) {
		return "", types.ErrValidation(field, s, "not a 65-byte hex signature")
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return strings.ToLower(s), nil
}

// ParseAmount checks s against the fixed-precision amount grammar and
// returns its wei-scale value. Zero is accepted; use ParsePositiveAmount
// where the pipeline forbids it.
func ParseAmount(field, s string) (*types.Wei, error) {
	if !amountRegex.MatchString(s) {
		return nil, types.ErrValidation(field, s, "amount must match NUMERIC(78,18) precision")
	}
	w, err := types.WeiFromDecimal(s)
	if err != nil {
		return nil, types.ErrValidation(field, s, err.Error())
	}
	return w, nil
}

// ParsePositiveAmount is ParseAmount restricted to strictly positive
// values. Transfer inputs and outputs reject zero amounts.
func ParsePositiveAmount(field, s string) (*types.Wei, error) {
	w, err := ParseAmount(field, s)
	if err != nil {
		return nil, err
	}
	if w.Sign() <= 0 {
		return nil, types.ErrValidation(field, s, "amount must be positive")
	}
	return w, nil
}

// ParseID parses a non-negative integer identifier from its decimal form.
func ParseID(field, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, types.ErrValidation(field, s, "not a non-negative integer")
	}
	return v, nil
}

// NormalizeToken canonicalizes a token identifier: the "0x0" shorthand
// becomes the full zero address and hex addresses are lowercased. Anything
// else (symbols, unresolved names) passes through untouched.
func NormalizeToken(token string) string {
	if token == "0x0" || token == "0X0" {
		return ZeroAddress
	}
	if common.IsHexAddress(token) {
		return strings.ToLower(common.HexToAddress(token).Hex())
	}
	return token
}

// ValidateIntention runs the full structural pass over a name-resolved
// intention and returns a normalized deep copy: token addresses and
// external destinations lowercased, the original left untouched. Semantic
// checks that need state (expiry, authorization, balances) happen later in
// the pipeline.
func ValidateIntention(in *types.Intention) (*types.Intention, error) {
	if in == nil {
		return nil, types.ErrValidation("intention", "", "missing body")
	}
	if strings.TrimSpace(in.Action) == "" {
		return nil, types.ErrValidation("action", in.Action, "must be non-empty")
	}
	// Vault creation is the one action that stands alone: inputs are an
	// optional seed and outputs are synthesized at handling time.
	bare := types.ParseAction(in.Action) == types.ActionCreateVault
	if !bare && len(in.Inputs) == 0 {
		return nil, types.ErrValidation("inputs", "", "at least one input required")
	}
	if !bare && len(in.Outputs) == 0 {
		return nil, types.ErrValidation("outputs", "", "at least one output required")
	}
	out := in.Copy()
	for i := range out.Inputs {
		field := fmt.Sprintf("inputs[%d]", i)
		if out.Inputs[i].Asset == "" {
			return nil, types.ErrValidation(field+".asset", "", "must be non-empty")
		}
		if _, err := ParsePositiveAmount(field+".amount", out.Inputs[i].Amount); err != nil {
			return nil, err
		}
		out.Inputs[i].Asset = NormalizeToken(out.Inputs[i].Asset)
	}
	for i := range out.Outputs {
		field := fmt.Sprintf("outputs[%d]", i)
		o := &out.Outputs[i]
		if o.Asset == "" {
			return nil, types.ErrValidation(field+".asset", "", "must be non-empty")
		}
		if _, err := ParsePositiveAmount(field+".amount", o.Amount); err != nil {
			return nil, err
		}
		if (o.To == nil) == (o.ToExternal == "") {
			return nil, types.ErrValidation(field, "", "exactly one of to and to_external required")
		}
		o.Asset = NormalizeToken(o.Asset)
		if o.ToExternal != "" && common.IsHexAddress(o.ToExternal) {
			o.ToExternal = strings.ToLower(common.HexToAddress(o.ToExternal).Hex())
		}
	}
	for _, fees := range []struct {
		field string
		list  []types.Fee
	}{
		{"totalFee", out.TotalFee},
		{"proposerTip", out.ProposerTip},
		{"protocolFee", out.ProtocolFee},
		{"agentTip", out.AgentTip},
	} {
		if err := validateFees(fees.field, fees.list); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func validateFees(field string, fees []types.Fee) error {
	for i, f := range fees {
		if f.Asset == nil {
			return types.ErrValidation(fmt.Sprintf("%s[%d].asset", field, i), "", "must be a list of symbols")
		}
		if _, err := ParseAmount(fmt.Sprintf("%s[%d].amount", field, i), f.Amount); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBundle checks the envelope the tick loop assembles before it is
// signed: a non-nil execution list under the wire key "bundle".
func ValidateBundle(b *types.Bundle) error {
	if b == nil {
		return types.ErrValidation("bundle", "", "missing body")
	}
	if b.Executions == nil {
		return types.ErrValidation("bundle", "", "executions must be non-nil")
	}
	return nil
}

// ValidateAssignDepositShape enforces the stricter structural policy for
// deposit assignments: pairwise-matching inputs and outputs, vault-id
// destinations only, and zero fees everywhere. The on-chain vault existence
// check needs the gateway and runs in the handler.
func ValidateAssignDepositShape(in *types.Intention) error {
	if len(in.Inputs) != len(in.Outputs) {
		return types.ErrValidation("inputs", strconv.Itoa(len(in.Inputs)),
			fmt.Sprintf("input count must equal output count (%d)", len(in.Outputs)))
	}
	for i := range in.Inputs {
		field := fmt.Sprintf("outputs[%d]", i)
		inp, o := in.Inputs[i], in.Outputs[i]
		if o.To == nil || o.ToExternal != "" {
			return types.ErrValidation(field, o.ToExternal, "deposit assignments credit vault ids only")
		}
		if NormalizeToken(inp.Asset) != NormalizeToken(o.Asset) {
			return types.ErrValidation(field+".asset", o.Asset, "must match the paired input asset")
		}
		if inp.Amount != o.Amount {
			return types.ErrValidation(field+".amount", o.Amount, "must match the paired input amount")
		}
		if inp.ChainID != o.ChainID {
			return types.ErrValidation(field+".chain_id", strconv.FormatUint(o.ChainID, 10), "must match the paired input chain")
		}
	}
	for i, f := range in.TotalFee {
		w, err := ParseAmount(fmt.Sprintf("totalFee[%d].amount", i), f.Amount)
		if err != nil {
			return err
		}
		if w.Sign() != 0 {
			return types.ErrValidation(fmt.Sprintf("totalFee[%d].amount", i), f.Amount, "deposit assignments carry zero fees")
		}
	}
	if len(in.ProposerTip) != 0 || len(in.ProtocolFee) != 0 || len(in.AgentTip) != 0 {
		return types.ErrValidation("proposerTip", "", "deposit assignments carry no tips or protocol fees")
	}
	return nil
}
