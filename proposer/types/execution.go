package types

import (
	"encoding/json"
	"time"
)

// Transfer is one concrete balance movement implied by an intention.
// Amounts are wei scale. Exactly one of ToVault and ToExternal is set.
// DepositID is set only on deposit-assignment proofs, where it names the
// deposit the amount is drawn from.
type Transfer struct {
	Token      string  `json:"token"`
	From       uint64  `json:"from"`
	ToVault    *uint64 `json:"to,omitempty"`
	ToExternal string  `json:"to_external,omitempty"`
	Amount     *Wei    `json:"amount"`
	DepositID  *uint64 `json:"deposit_id,omitempty"`
}

// Internal reports whether the transfer credits a vault rather than an
// external address.
func (t *Transfer) Internal() bool {
	return t.ToVault != nil
}

// ExecutionObject is a fully processed intention: the original submission,
// the resolved source vault, the proof of transfers the bundle will apply,
// and the controller's signature.
type ExecutionObject struct {
	Intention *Intention  `json:"intention"`
	From      uint64      `json:"from"`
	Proof     []*Transfer `json:"proof"`
	Signature string      `json:"signature"`
}

// Bundle is the envelope the proposer signs and publishes: the executions
// drained from the pending queue in submission order plus the global
// bundle nonce.
type Bundle struct {
	Executions []*ExecutionObject `json:"bundle"`
	Nonce      uint64             `json:"nonce"`
}

// SigningPayload returns the canonical pre-gzip JSON the proposer key
// signs. The same bytes are compressed into the content-store payload, so
// a published bundle can always be verified against its anchor.
func (b *Bundle) SigningPayload() ([]byte, error) {
	return json.Marshal(b)
}

// StoredBundle is the persisted view of a published bundle.
type StoredBundle struct {
	Nonce     uint64    `json:"nonce"`
	Body      []byte    `json:"bundle"`
	Proposer  string    `json:"proposer"`
	Signature string    `json:"signature"`
	CID       string    `json:"cid"`
	CreatedAt time.Time `json:"created_at"`
}

// Deposit is an externally observed transfer into the vault tracker,
// recorded append-only and credited to vaults through assignment events.
type Deposit struct {
	ID          uint64     `json:"id"`
	TxHash      string     `json:"tx_hash"`
	TransferUID string     `json:"transfer_uid"`
	ChainID     uint64     `json:"chain_id"`
	Depositor   string     `json:"depositor"`
	Token       string     `json:"token"`
	Amount      *Wei       `json:"amount"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
}

// AssignmentEvent credits part of a deposit to a vault. The sum of a
// deposit's events never exceeds its amount.
type AssignmentEvent struct {
	ID            uint64    `json:"id"`
	DepositID     uint64    `json:"deposit_id"`
	Amount        *Wei      `json:"amount"`
	CreditedVault uint64    `json:"credited_vault"`
	CreatedAt     time.Time `json:"created_at"`
}

// BundleEvent is emitted on the node's event feed after a bundle commit
// succeeds. Subscribers (pinning, webhooks) consume it best-effort.
type BundleEvent struct {
	Bundle    *Bundle
	Nonce     uint64
	CID       string
	Gzip      []byte
	CreatedAt time.Time
}
