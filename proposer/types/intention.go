package types

import (
	"encoding/json"
)

// Intention is a signed statement of desired state change submitted by a
// vault controller. Field order matters: the canonical signing payload is
// the compact JSON encoding in declaration order, computed on the original
// submission before any name resolution or normalization.
type Intention struct {
	Action      string   `json:"action"`
	Nonce       uint64   `json:"nonce"`
	Expiry      int64    `json:"expiry"`
	Inputs      []Input  `json:"inputs"`
	Outputs     []Output `json:"outputs"`
	TotalFee    []Fee    `json:"totalFee"`
	ProposerTip []Fee    `json:"proposerTip"`
	ProtocolFee []Fee    `json:"protocolFee"`
	AgentTip    []Fee    `json:"agentTip,omitempty"`
}

// Input names an asset amount an intention spends. From is the source
// vault; when omitted the handler resolves it from the signer's vaults.
type Input struct {
	Asset   string          `json:"asset"`
	Amount  string          `json:"amount"`
	ChainID uint64          `json:"chain_id"`
	From    *uint64         `json:"from,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Output names an asset amount an intention produces. Exactly one of To
// (a vault id) and ToExternal (an address, or a name resolved to one) must
// be set.
type Output struct {
	Asset      string          `json:"asset"`
	Amount     string          `json:"amount"`
	ChainID    uint64          `json:"chain_id"`
	To         *uint64         `json:"to,omitempty"`
	ToExternal string          `json:"to_external,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Fee annotates an intention with a fee amount over a list of asset
// symbols.
type Fee struct {
	Asset  []string `json:"asset"`
	Amount string   `json:"amount"`
}

// SigningPayload returns the canonical UTF-8 serialization signed by the
// controller: compact JSON with fields in declaration order. Opaque data
// fields are embedded verbatim (whitespace-compacted), so the payload is
// deterministic for a given logical intention.
func (i *Intention) SigningPayload() ([]byte, error) {
	return json.Marshal(i)
}

// Copy returns a deep copy of the intention. Validators return normalized
// copies so the original submission stays untouched for signature checks.
func (i *Intention) Copy() *Intention {
	out := &Intention{
		Action:      i.Action,
		Nonce:       i.Nonce,
		Expiry:      i.Expiry,
		Inputs:      make([]Input, len(i.Inputs)),
		Outputs:     make([]Output, len(i.Outputs)),
		TotalFee:    copyFees(i.TotalFee),
		ProposerTip: copyFees(i.ProposerTip),
		ProtocolFee: copyFees(i.ProtocolFee),
	}
	if i.AgentTip != nil {
		out.AgentTip = copyFees(i.AgentTip)
	}
	for n, in := range i.Inputs {
		out.Inputs[n] = in
		if in.From != nil {
			v := *in.From
			out.Inputs[n].From = &v
		}
		out.Inputs[n].Data = append(json.RawMessage(nil), in.Data...)
	}
	for n, o := range i.Outputs {
		out.Outputs[n] = o
		if o.To != nil {
			v := *o.To
			out.Outputs[n].To = &v
		}
		out.Outputs[n].Data = append(json.RawMessage(nil), o.Data...)
	}
	return out
}

func copyFees(fees []Fee) []Fee {
	if fees == nil {
		return nil
	}
	out := make([]Fee, len(fees))
	for n, f := range fees {
		out[n] = Fee{Asset: append([]string(nil), f.Asset...), Amount: f.Amount}
	}
	return out
}
