package validation

import (
	"strings"
	"testing"

	"github.com/latticelabs/lattice/proposer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "prefixed", in: "0xDEADbeef00000000000000000000000000000001", want: "0xdeadbeef00000000000000000000000000000001"},
		{name: "unprefixed", in: "deadbeef00000000000000000000000000000001", want: "0xdeadbeef00000000000000000000000000000001"},
		{name: "too short", in: "0xdeadbeef", wantErr: true},
		{name: "bad alphabet", in: "0xZZadbeef00000000000000000000000000000001", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateAddress("controller", tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.KindValidation, types.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateSignature(t *testing.T) {
	raw := strings.Repeat("Ab", 65)
	got, err := ValidateSignature("signature", raw)
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.ToLower(raw), got)

	got, err = ValidateSignature("signature", "0x"+raw)
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.ToLower(raw), got)

	_, err = ValidateSignature("signature", strings.Repeat("ab", 64))
	require.Error(t, err)
	_, err = ValidateSignature("signature", strings.Repeat("zz", 65))
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string // wei
		wantErr bool
	}{
		{in: "100", want: "100000000000000000000"},
		{in: "0", want: "0"},
		{in: "0.5", want: "500000000000000000"},
		{in: strings.Repeat("9", 60), wantErr: false, want: strings.Repeat("9", 60) + strings.Repeat("0", 18)},
		{in: strings.Repeat("9", 61), wantErr: true},
		{in: "1." + strings.Repeat("1", 19), wantErr: true},
		{in: "-5", wantErr: true},
		{in: "1e18", wantErr: true},
		{in: ".5", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		w, err := ParseAmount("amount", tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, w.String(), "input %q", tt.in)
	}
}

func TestParsePositiveAmount(t *testing.T) {
	_, err := ParsePositiveAmount("amount", "0")
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	w, err := ParsePositiveAmount("amount", "0.000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "1", w.String())
}

func TestParseID(t *testing.T) {
	id, err := ParseID("vault", "42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	_, err = ParseID("vault", "-1")
	require.Error(t, err)
	_, err = ParseID("vault", "forty")
	require.Error(t, err)
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, ZeroAddress, NormalizeToken("0x0"))
	assert.Equal(t, ZeroAddress, NormalizeToken("0X0"))
	assert.Equal(t, "0xdeadbeef00000000000000000000000000000001", NormalizeToken("0xDEADBEEF00000000000000000000000000000001"))
	assert.Equal(t, "ETH", NormalizeToken("ETH"))
}

func validIntention() *types.Intention {
	to := uint64(2)
	one := uint64(1)
	return &types.Intention{
		Action: "send",
		Nonce:  1,
		Expiry: 2000000000,
		Inputs: []types.Input{
			{Asset: "0x0", Amount: "100", ChainID: 1, From: &one},
		},
		Outputs: []types.Output{
			{Asset: "0x0", Amount: "100", ChainID: 1, To: &to},
		},
		TotalFee:    []types.Fee{{Asset: []string{"ETH"}, Amount: "0"}},
		ProposerTip: []types.Fee{},
		ProtocolFee: []types.Fee{},
	}
}

func TestValidateIntention(t *testing.T) {
	got, err := ValidateIntention(validIntention())
	require.NoError(t, err)
	assert.Equal(t, ZeroAddress, got.Inputs[0].Asset)
	assert.Equal(t, ZeroAddress, got.Outputs[0].Asset)

	// The original is left untouched for signature verification.
	in := validIntention()
	_, err = ValidateIntention(in)
	require.NoError(t, err)
	assert.Equal(t, "0x0", in.Inputs[0].Asset)
}

func TestValidateIntentionNormalizesExternalDestination(t *testing.T) {
	in := validIntention()
	in.Outputs[0].To = nil
	in.Outputs[0].ToExternal = "0xDEADBEEF00000000000000000000000000000001"
	got, err := ValidateIntention(in)
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef00000000000000000000000000000001", got.Outputs[0].ToExternal)
}

func TestValidateIntentionBareCreateVault(t *testing.T) {
	// Vault creation without a seed carries neither inputs nor outputs.
	in := &types.Intention{Action: "CreateVault", Nonce: 1, Expiry: 2000000000}
	got, err := ValidateIntention(in)
	require.NoError(t, err)
	assert.Empty(t, got.Inputs)
	assert.Empty(t, got.Outputs)
}

func TestValidateIntentionRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Intention)
	}{
		{name: "empty action", mutate: func(i *types.Intention) { i.Action = "  " }},
		{name: "no inputs", mutate: func(i *types.Intention) { i.Inputs = nil }},
		{name: "no outputs", mutate: func(i *types.Intention) { i.Outputs = nil }},
		{name: "zero input amount", mutate: func(i *types.Intention) { i.Inputs[0].Amount = "0" }},
		{name: "malformed output amount", mutate: func(i *types.Intention) { i.Outputs[0].Amount = "1e9" }},
		{name: "empty input asset", mutate: func(i *types.Intention) { i.Inputs[0].Asset = "" }},
		{name: "both destinations", mutate: func(i *types.Intention) { i.Outputs[0].ToExternal = "0xdead" }},
		{name: "no destination", mutate: func(i *types.Intention) { i.Outputs[0].To = nil }},
		{name: "nil fee asset list", mutate: func(i *types.Intention) { i.TotalFee = []types.Fee{{Amount: "0"}} }},
		{name: "malformed fee amount", mutate: func(i *types.Intention) { i.TotalFee[0].Amount = "x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validIntention()
			tt.mutate(in)
			_, err := ValidateIntention(in)
			require.Error(t, err)
			assert.Equal(t, types.KindValidation, types.KindOf(err))
		})
	}

	_, err := ValidateIntention(nil)
	require.Error(t, err)
}

func validAssignDeposit() *types.Intention {
	to := uint64(7)
	return &types.Intention{
		Action: "AssignDeposit",
		Expiry: 2000000000,
		Inputs: []types.Input{
			{Asset: "0xT000000000000000000000000000000000000001", Amount: "1000", ChainID: 11155111},
		},
		Outputs: []types.Output{
			{Asset: "0xT000000000000000000000000000000000000001", Amount: "1000", ChainID: 11155111, To: &to},
		},
		TotalFee:    []types.Fee{{Asset: []string{"ETH"}, Amount: "0"}},
		ProposerTip: []types.Fee{},
		ProtocolFee: []types.Fee{},
	}
}

func TestValidateAssignDepositShape(t *testing.T) {
	require.NoError(t, ValidateAssignDepositShape(validAssignDeposit()))

	tests := []struct {
		name   string
		mutate func(*types.Intention)
	}{
		{name: "count mismatch", mutate: func(i *types.Intention) { i.Inputs = append(i.Inputs, i.Inputs[0]) }},
		{name: "asset mismatch", mutate: func(i *types.Intention) { i.Outputs[0].Asset = "0x0" }},
		{name: "amount mismatch", mutate: func(i *types.Intention) { i.Outputs[0].Amount = "999" }},
		{name: "chain mismatch", mutate: func(i *types.Intention) { i.Outputs[0].ChainID = 1 }},
		{name: "external destination", mutate: func(i *types.Intention) {
			i.Outputs[0].To = nil
			i.Outputs[0].ToExternal = "0xdeadbeef00000000000000000000000000000001"
		}},
		{name: "nonzero total fee", mutate: func(i *types.Intention) { i.TotalFee[0].Amount = "1" }},
		{name: "proposer tip present", mutate: func(i *types.Intention) {
			i.ProposerTip = []types.Fee{{Asset: []string{"ETH"}, Amount: "0"}}
		}},
		{name: "agent tip present", mutate: func(i *types.Intention) {
			i.AgentTip = []types.Fee{{Asset: []string{"ETH"}, Amount: "0"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validAssignDeposit()
			tt.mutate(in)
			err := ValidateAssignDepositShape(in)
			require.Error(t, err)
			assert.Equal(t, types.KindValidation, types.KindOf(err))
		})
	}
}

func TestValidateBundle(t *testing.T) {
	require.Error(t, ValidateBundle(nil))
	require.Error(t, ValidateBundle(&types.Bundle{Nonce: 1}))
	require.NoError(t, ValidateBundle(&types.Bundle{Executions: []*types.ExecutionObject{}, Nonce: 1}))
}
