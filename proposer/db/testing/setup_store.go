// Package testing provides an in-memory implementation of the proposer
// store with the same transactional semantics as the Postgres store, for
// use in unit tests.
package testing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
)

// SetupStore instantiates an empty in-memory store and registers its
// cleanup with the test.
func SetupStore(t testing.TB) *Store {
	s := NewStore()
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("Failed to close store: %v", err)
		}
	})
	return s
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		balances:  make(map[uint64]map[string]*types.Wei),
		vaults:    make(map[uint64]*vaultRow),
		bundles:   make(map[uint64]*types.StoredBundle),
		cids:      make(map[uint64]string),
		proposers: make(map[string]time.Time),
	}
}

type vaultRow struct {
	controllers []string
	rules       string
	nonce       uint64
}

// Store is an in-memory iface.Store. All methods are safe for concurrent
// use; multi-row mutations hold the lock for their full duration, which
// models the Postgres transaction boundaries closely enough for tests.
type Store struct {
	mu        sync.Mutex
	balances  map[uint64]map[string]*types.Wei
	vaults    map[uint64]*vaultRow
	bundles   map[uint64]*types.StoredBundle
	cids      map[uint64]string
	deposits  []*types.Deposit
	events    []*types.AssignmentEvent
	proposers map[string]time.Time
}

var _ iface.Store = (*Store)(nil)

// Close implements iface.Store.
func (s *Store) Close() error { return nil }

func norm(id string) string { return strings.ToLower(id) }

// Balance implements iface.ReadOnlyStore.
func (s *Store) Balance(_ context.Context, vault uint64, token string) (*types.Wei, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(vault, token), nil
}

func (s *Store) balanceLocked(vault uint64, token string) *types.Wei {
	if w, ok := s.balances[vault][norm(token)]; ok {
		return w.Clone()
	}
	return types.WeiFromUint64(0)
}

// Balances implements iface.ReadOnlyStore.
func (s *Store) Balances(_ context.Context, vault uint64) ([]iface.BalanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []iface.BalanceRecord
	for token, w := range s.balances[vault] {
		out = append(out, iface.BalanceRecord{Token: token, Amount: w.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

// SetBalance implements iface.WriteAccessStore.
func (s *Store) SetBalance(_ context.Context, vault uint64, token string, amount *types.Wei) error {
	if amount.Sign() < 0 {
		return errors.New("balance must be non-negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creditLocked(vault, token, amount, true)
	return nil
}

func (s *Store) creditLocked(vault uint64, token string, amount *types.Wei, replace bool) {
	if s.balances[vault] == nil {
		s.balances[vault] = make(map[string]*types.Wei)
	}
	key := norm(token)
	if replace || s.balances[vault][key] == nil {
		s.balances[vault][key] = amount.Clone()
		return
	}
	cur := s.balances[vault][key]
	cur.Int().Add(cur.Int(), amount.Int())
}

func (s *Store) debitLocked(vault uint64, token string, amount *types.Wei) error {
	cur, ok := s.balances[vault][norm(token)]
	if !ok || cur.Cmp(amount) < 0 {
		return types.ErrKind(types.KindInsufficientBalance, "source balance below transfer amount")
	}
	cur.Int().Sub(cur.Int(), amount.Int())
	return nil
}

// ApplyTransfer implements iface.WriteAccessStore.
func (s *Store) ApplyTransfer(_ context.Context, from uint64, toVault *uint64, token string, amount *types.Wei) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.debitLocked(from, token, amount); err != nil {
		return err
	}
	if toVault != nil {
		s.creditLocked(*toVault, token, amount, false)
	}
	return nil
}

// CreateVault implements iface.WriteAccessStore.
func (s *Store) CreateVault(_ context.Context, vault uint64, controller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vaults[vault]; ok {
		return errors.Errorf("vault %d exists", vault)
	}
	s.vaults[vault] = &vaultRow{controllers: []string{norm(controller)}}
	return nil
}

// HasVault implements iface.ReadOnlyStore.
func (s *Store) HasVault(_ context.Context, vault uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.vaults[vault]
	return ok, nil
}

// Controllers implements iface.ReadOnlyStore.
func (s *Store) Controllers(_ context.Context, vault uint64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[vault]
	if !ok {
		return nil, iface.ErrNotFound
	}
	return append([]string(nil), v.controllers...), nil
}

// AddController implements iface.WriteAccessStore.
func (s *Store) AddController(_ context.Context, vault uint64, controller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[vault]
	if !ok {
		return iface.ErrNotFound
	}
	c := norm(controller)
	for _, existing := range v.controllers {
		if existing == c {
			return nil
		}
	}
	v.controllers = append(v.controllers, c)
	return nil
}

// RemoveController implements iface.WriteAccessStore.
func (s *Store) RemoveController(_ context.Context, vault uint64, controller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[vault]
	if !ok {
		return iface.ErrNotFound
	}
	c := norm(controller)
	out := v.controllers[:0]
	for _, existing := range v.controllers {
		if existing != c {
			out = append(out, existing)
		}
	}
	v.controllers = out
	return nil
}

// SetRules implements iface.WriteAccessStore.
func (s *Store) SetRules(_ context.Context, vault uint64, rules string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[vault]
	if !ok {
		return iface.ErrNotFound
	}
	v.rules = rules
	return nil
}

// VaultRules implements iface.ReadOnlyStore.
func (s *Store) VaultRules(_ context.Context, vault uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[vault]
	if !ok {
		return "", iface.ErrNotFound
	}
	return v.rules, nil
}

// VaultNonce implements iface.ReadOnlyStore.
func (s *Store) VaultNonce(_ context.Context, vault uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[vault]
	if !ok {
		return 0, iface.ErrNotFound
	}
	return v.nonce, nil
}

// SetVaultNonce implements iface.WriteAccessStore. Missing vaults are
// skipped like the Postgres store does.
func (s *Store) SetVaultNonce(_ context.Context, vault uint64, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setVaultNonceLocked(vault, nonce)
	return nil
}

func (s *Store) setVaultNonceLocked(vault, nonce uint64) {
	if v, ok := s.vaults[vault]; ok {
		v.nonce = nonce
	}
}

// VaultsByController implements iface.ReadOnlyStore.
func (s *Store) VaultsByController(_ context.Context, controller string) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := norm(controller)
	var out []uint64
	for id, v := range s.vaults {
		for _, existing := range v.controllers {
			if existing == c {
				out = append(out, id)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// NextBundleNonce implements iface.ReadOnlyStore.
func (s *Store) NextBundleNonce(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextBundleNonceLocked(), nil
}

func (s *Store) nextBundleNonceLocked() uint64 {
	next := uint64(0)
	for nonce := range s.bundles {
		if nonce+1 > next {
			next = nonce + 1
		}
	}
	return next
}

// Bundle implements iface.ReadOnlyStore.
func (s *Store) Bundle(_ context.Context, nonce uint64) (*types.StoredBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[nonce]
	if !ok {
		return nil, errors.Wrapf(iface.ErrNotFound, "bundle %d", nonce)
	}
	cp := *b
	return &cp, nil
}

// Bundles implements iface.ReadOnlyStore.
func (s *Store) Bundles(_ context.Context, limit int, before *uint64) ([]*types.StoredBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var nonces []uint64
	for nonce := range s.bundles {
		if before != nil && nonce >= *before {
			continue
		}
		nonces = append(nonces, nonce)
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] > nonces[j] })
	if len(nonces) > limit {
		nonces = nonces[:limit]
	}
	out := make([]*types.StoredBundle, 0, len(nonces))
	for _, nonce := range nonces {
		cp := *s.bundles[nonce]
		out = append(out, &cp)
	}
	return out, nil
}

// CID implements iface.ReadOnlyStore.
func (s *Store) CID(_ context.Context, nonce uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cid, ok := s.cids[nonce]
	if !ok {
		return "", errors.Wrapf(iface.ErrNotFound, "cid for bundle %d", nonce)
	}
	return cid, nil
}

// InsertDepositIfMissing implements iface.WriteAccessStore.
func (s *Store) InsertDepositIfMissing(_ context.Context, d *types.Deposit) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.deposits {
		if existing.TransferUID == d.TransferUID {
			return existing.ID, nil
		}
	}
	cp := *d
	cp.ID = uint64(len(s.deposits) + 1)
	cp.Depositor = norm(cp.Depositor)
	cp.Token = norm(cp.Token)
	cp.Amount = d.Amount.Clone()
	s.deposits = append(s.deposits, &cp)
	return cp.ID, nil
}

// Deposit implements iface.ReadOnlyStore.
func (s *Store) Deposit(_ context.Context, id uint64) (*types.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.depositLocked(id)
	if d == nil {
		return nil, errors.Wrapf(iface.ErrNotFound, "deposit %d", id)
	}
	cp := *d
	return &cp, nil
}

func (s *Store) depositLocked(id uint64) *types.Deposit {
	if id == 0 || id > uint64(len(s.deposits)) {
		return nil
	}
	return s.deposits[id-1]
}

// DepositRemaining implements iface.ReadOnlyStore.
func (s *Store) DepositRemaining(_ context.Context, id uint64) (*types.Wei, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.depositLocked(id)
	if d == nil {
		return nil, errors.Wrapf(iface.ErrNotFound, "deposit %d", id)
	}
	return s.remainingLocked(d), nil
}

func (s *Store) remainingLocked(d *types.Deposit) *types.Wei {
	remaining := d.Amount.Clone()
	for _, e := range s.events {
		if e.DepositID == d.ID {
			remaining.Int().Sub(remaining.Int(), e.Amount.Int())
		}
	}
	return remaining
}

// DepositsWithRemaining implements iface.ReadOnlyStore.
func (s *Store) DepositsWithRemaining(_ context.Context, depositor, token string, chainID uint64) ([]iface.DepositBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []iface.DepositBalance
	for _, d := range s.deposits {
		if d.Depositor != norm(depositor) || d.Token != norm(token) || d.ChainID != chainID {
			continue
		}
		remaining := s.remainingLocked(d)
		if remaining.Sign() > 0 {
			out = append(out, iface.DepositBalance{ID: d.ID, Remaining: remaining})
		}
	}
	return out, nil
}

// NextDepositWithRemaining implements iface.ReadOnlyStore.
func (s *Store) NextDepositWithRemaining(_ context.Context, depositor, token string, chainID uint64) (*iface.DepositBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deposits {
		if d.Depositor != norm(depositor) || d.Token != norm(token) || d.ChainID != chainID {
			continue
		}
		remaining := s.remainingLocked(d)
		if remaining.Sign() > 0 {
			return &iface.DepositBalance{ID: d.ID, Remaining: remaining}, nil
		}
	}
	return nil, errors.Wrapf(iface.ErrNotFound, "no open deposit for %s", depositor)
}

// DepositWithSufficientRemaining implements iface.ReadOnlyStore.
func (s *Store) DepositWithSufficientRemaining(_ context.Context, depositor, token string, chainID uint64, min *types.Wei) (*iface.DepositBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deposits {
		if d.Depositor != norm(depositor) || d.Token != norm(token) || d.ChainID != chainID {
			continue
		}
		remaining := s.remainingLocked(d)
		if remaining.Cmp(min) >= 0 {
			return &iface.DepositBalance{ID: d.ID, Remaining: remaining}, nil
		}
	}
	return nil, errors.Wrapf(iface.ErrNotFound, "no deposit covering %s for %s", min, depositor)
}

// AssignDeposit implements iface.WriteAccessStore.
func (s *Store) AssignDeposit(_ context.Context, depositID uint64, amount *types.Wei, creditedVault uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignLocked(depositID, amount, creditedVault)
}

func (s *Store) assignLocked(depositID uint64, amount *types.Wei, creditedVault uint64) error {
	d := s.depositLocked(depositID)
	if d == nil {
		return errors.Wrapf(iface.ErrNotFound, "deposit %d", depositID)
	}
	remaining := s.remainingLocked(d)
	if amount.Sign() <= 0 || amount.Cmp(remaining) > 0 {
		return types.ErrKind(types.KindDepositInsufficient, "assignment exceeds deposit remainder")
	}
	s.events = append(s.events, &types.AssignmentEvent{
		ID:            uint64(len(s.events) + 1),
		DepositID:     depositID,
		Amount:        amount.Clone(),
		CreditedVault: creditedVault,
		CreatedAt:     time.Now(),
	})
	if amount.Cmp(remaining) == 0 {
		now := time.Now()
		d.AssignedAt = &now
	}
	return nil
}

// PublishBundle implements iface.WriteAccessStore with the same
// idempotency and all-or-nothing behavior as the Postgres store: the state
// is snapshotted up front and restored when any step fails.
func (s *Store) PublishBundle(_ context.Context, plan *iface.PublishPlan) error {
	if plan == nil {
		return errors.New("nil publish plan")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[plan.Nonce]; ok {
		return nil
	}
	rollback := s.snapshotLocked()
	if err := s.applyPlanLocked(plan); err != nil {
		rollback()
		return err
	}
	s.bundles[plan.Nonce] = &types.StoredBundle{
		Nonce:     plan.Nonce,
		Body:      append([]byte(nil), plan.Body...),
		Proposer:  norm(plan.Proposer),
		Signature: plan.Signature,
		CID:       plan.CID,
		CreatedAt: time.Now(),
	}
	s.cids[plan.Nonce] = plan.CID
	s.proposers[norm(plan.Proposer)] = time.Now()
	return nil
}

func (s *Store) applyPlanLocked(plan *iface.PublishPlan) error {
	for _, exec := range plan.Executions {
		for _, t := range exec.Proof {
			switch {
			case t.DepositID != nil:
				if t.ToVault == nil {
					return errors.New("deposit assignment without a vault destination")
				}
				if err := s.assignLocked(*t.DepositID, t.Amount, *t.ToVault); err != nil {
					return err
				}
				s.creditLocked(*t.ToVault, t.Token, t.Amount, false)
			case t.Internal():
				if err := s.debitLocked(t.From, t.Token, t.Amount); err != nil {
					return err
				}
				s.creditLocked(*t.ToVault, t.Token, t.Amount, false)
			default:
				if err := s.debitLocked(t.From, t.Token, t.Amount); err != nil {
					return err
				}
			}
		}
		s.setVaultNonceLocked(exec.From, exec.Intention.Nonce)
	}
	return nil
}

// snapshotLocked deep-copies the mutable state and returns a restore
// function, standing in for the Postgres transaction rollback.
func (s *Store) snapshotLocked() func() {
	balances := make(map[uint64]map[string]*types.Wei, len(s.balances))
	for vault, tokens := range s.balances {
		balances[vault] = make(map[string]*types.Wei, len(tokens))
		for token, w := range tokens {
			balances[vault][token] = w.Clone()
		}
	}
	vaults := make(map[uint64]*vaultRow, len(s.vaults))
	for id, v := range s.vaults {
		vaults[id] = &vaultRow{
			controllers: append([]string(nil), v.controllers...),
			rules:       v.rules,
			nonce:       v.nonce,
		}
	}
	deposits := make([]*types.Deposit, len(s.deposits))
	for i, d := range s.deposits {
		cp := *d
		cp.Amount = d.Amount.Clone()
		if d.AssignedAt != nil {
			at := *d.AssignedAt
			cp.AssignedAt = &at
		}
		deposits[i] = &cp
	}
	events := append([]*types.AssignmentEvent(nil), s.events...)
	return func() {
		s.balances = balances
		s.vaults = vaults
		s.deposits = deposits
		s.events = events
	}
}

// MarkProposerSeen implements iface.WriteAccessStore.
func (s *Store) MarkProposerSeen(_ context.Context, proposer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposers[norm(proposer)] = time.Now()
	return nil
}

// AssignmentEvents returns a copy of the recorded assignment events for
// assertions in tests.
func (s *Store) AssignmentEvents() []*types.AssignmentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.AssignmentEvent(nil), s.events...)
}
