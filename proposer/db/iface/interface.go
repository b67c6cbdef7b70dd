// Package iface defines the storage interface of the proposer node. It is
// implemented by the Postgres-backed store in db/sql and by the in-memory
// store in db/testing.
package iface

import (
	"context"
	"io"

	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("not found")

// BalanceRecord is one (token, amount) pair held by a vault.
type BalanceRecord struct {
	Token  string
	Amount *types.Wei
}

// DepositBalance is a deposit id with its unassigned remainder.
type DepositBalance struct {
	ID        uint64
	Remaining *types.Wei
}

// PublishPlan carries everything the single bundle-commit transaction
// writes: the signed bundle row, its content id, and the executions whose
// proofs are applied to balances, vault nonces, and the deposit ledger.
type PublishPlan struct {
	Nonce      uint64
	Body       []byte
	Proposer   string
	Signature  string
	CID        string
	Executions []*types.ExecutionObject
}

// ReadOnlyStore has the functions that do not modify the store.
type ReadOnlyStore interface {
	// Balance related methods.
	Balance(ctx context.Context, vault uint64, token string) (*types.Wei, error)
	Balances(ctx context.Context, vault uint64) ([]BalanceRecord, error)

	// Vault related methods.
	HasVault(ctx context.Context, vault uint64) (bool, error)
	Controllers(ctx context.Context, vault uint64) ([]string, error)
	VaultRules(ctx context.Context, vault uint64) (string, error)
	VaultNonce(ctx context.Context, vault uint64) (uint64, error)
	VaultsByController(ctx context.Context, controller string) ([]uint64, error)

	// Bundle related methods.
	NextBundleNonce(ctx context.Context) (uint64, error)
	Bundle(ctx context.Context, nonce uint64) (*types.StoredBundle, error)
	Bundles(ctx context.Context, limit int, before *uint64) ([]*types.StoredBundle, error)
	CID(ctx context.Context, nonce uint64) (string, error)

	// Deposit ledger related methods.
	Deposit(ctx context.Context, id uint64) (*types.Deposit, error)
	DepositRemaining(ctx context.Context, id uint64) (*types.Wei, error)
	DepositsWithRemaining(ctx context.Context, depositor, token string, chainID uint64) ([]DepositBalance, error)
	NextDepositWithRemaining(ctx context.Context, depositor, token string, chainID uint64) (*DepositBalance, error)
	DepositWithSufficientRemaining(ctx context.Context, depositor, token string, chainID uint64, min *types.Wei) (*DepositBalance, error)
}

// WriteAccessStore has the functions that can modify the store.
type WriteAccessStore interface {
	// Balance related methods.
	SetBalance(ctx context.Context, vault uint64, token string, amount *types.Wei) error
	ApplyTransfer(ctx context.Context, from uint64, toVault *uint64, token string, amount *types.Wei) error

	// Vault related methods.
	CreateVault(ctx context.Context, vault uint64, controller string) error
	AddController(ctx context.Context, vault uint64, controller string) error
	RemoveController(ctx context.Context, vault uint64, controller string) error
	SetRules(ctx context.Context, vault uint64, rules string) error
	SetVaultNonce(ctx context.Context, vault uint64, nonce uint64) error

	// Deposit ledger related methods.
	InsertDepositIfMissing(ctx context.Context, d *types.Deposit) (uint64, error)
	AssignDeposit(ctx context.Context, depositID uint64, amount *types.Wei, creditedVault uint64) error

	// Bundle related methods.
	PublishBundle(ctx context.Context, plan *PublishPlan) error

	// Proposer bookkeeping.
	MarkProposerSeen(ctx context.Context, proposer string) error
}

// Store is the full storage surface with lifecycle helpers.
type Store interface {
	io.Closer
	ReadOnlyStore
	WriteAccessStore
}
