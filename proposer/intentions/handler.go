package intentions

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/latticelabs/lattice/proposer/chain"
	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/deposits"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/latticelabs/lattice/proposer/validation"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
)

// Submission is a signed intention as received from a controller.
type Submission struct {
	Intention  *types.Intention `json:"intention"`
	Signature  string           `json:"signature"`
	Controller string           `json:"controller"`
}

// Submit runs one submission through the admission pipeline and, on
// success, appends the resulting execution to the pending queue. Errors
// reject the submission with no state change, with one caveat: vault
// creation submits its on-chain transaction before the queue append, so a
// queue-full rejection there leaves the created vault behind.
func (s *Service) Submit(ctx context.Context, sub *Submission) (*types.ExecutionObject, error) {
	ctx, span := trace.StartSpan(ctx, "intentions.Submit")
	defer span.End()

	exec, err := s.process(ctx, sub)
	if err != nil {
		submissionsRejectedCount.WithLabelValues(types.KindOf(err).String()).Inc()
		return nil, err
	}
	submissionsAcceptedCount.Inc()
	return exec, nil
}

func (s *Service) process(ctx context.Context, sub *Submission) (*types.ExecutionObject, error) {
	if sub == nil || sub.Intention == nil {
		return nil, types.ErrValidation("intention", "", "missing body")
	}

	// Envelope format only. The body may still carry unresolved names, so
	// it is not validated yet.
	sig, err := validation.ValidateSignature("signature", sub.Signature)
	if err != nil {
		return nil, err
	}
	controller, err := validation.ValidateAddress("controller", sub.Controller)
	if err != nil {
		return nil, err
	}

	// The signature covers the canonical serialization of the intention
	// exactly as submitted, before resolution mutates it.
	payload, err := sub.Intention.SigningPayload()
	if err != nil {
		return nil, types.ErrInternal(err, "could not serialize intention")
	}
	signer, err := chain.RecoverPersonalSigner(payload, sig)
	if err != nil {
		return nil, types.ErrKind(types.KindSignatureInvalid, err.Error())
	}
	if !strings.EqualFold(signer.Hex(), controller) {
		return nil, types.ErrKind(types.KindSignatureInvalid,
			fmt.Sprintf("recovered signer %s is not controller %s", strings.ToLower(signer.Hex()), controller))
	}

	if err := s.cfg.Resolver.ResolveIntention(ctx, sub.Intention); err != nil {
		return nil, err
	}

	in, err := validation.ValidateIntention(sub.Intention)
	if err != nil {
		return nil, err
	}

	var exec *types.ExecutionObject
	switch types.ParseAction(in.Action) {
	case types.ActionCreateVault:
		exec, err = s.createVault(ctx, sub, in, controller, sig)
	case types.ActionAssignDeposit:
		exec, err = s.assignDeposit(ctx, sub, in, controller, sig)
	default:
		exec, err = s.settle(ctx, sub, in, controller, sig)
	}
	if err != nil {
		return nil, err
	}
	if err := s.queue.Push(exec); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"action":  in.Action,
		"from":    exec.From,
		"nonce":   in.Nonce,
		"pending": s.queue.Len(),
	}).Debug("Admitted intention to pending queue")
	return exec, nil
}

// settle is the generic path for transfers, swaps, and custom actions:
// expiry, source vault resolution, authorization, balance admission, then
// one proof transfer per output.
func (s *Service) settle(ctx context.Context, sub *Submission, in *types.Intention, controller, sig string) (*types.ExecutionObject, error) {
	if err := checkExpiry(in); err != nil {
		return nil, err
	}
	from, err := s.sourceVault(ctx, in.Inputs, controller)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, from, controller); err != nil {
		return nil, err
	}
	if err := s.admit(ctx, in, from); err != nil {
		return nil, err
	}
	proof, err := transferProof(in.Outputs, from)
	if err != nil {
		return nil, err
	}
	return &types.ExecutionObject{Intention: sub.Intention, From: from, Proof: proof, Signature: sig}, nil
}

// createVault reads the next vault id from the tracker, submits the
// creation transaction, and records the local row with the signer as the
// initial controller. Inputs, when present, seed the new vault: they are
// admitted against their source vault like a transfer and credited to the
// new vault at publish.
func (s *Service) createVault(ctx context.Context, sub *Submission, in *types.Intention, controller, sig string) (*types.ExecutionObject, error) {
	proof := []*types.Transfer{}
	if len(in.Inputs) > 0 {
		if err := checkExpiry(in); err != nil {
			return nil, err
		}
		from, err := s.sourceVault(ctx, in.Inputs, controller)
		if err != nil {
			return nil, err
		}
		if err := s.authorize(ctx, from, controller); err != nil {
			return nil, err
		}
		if err := s.admit(ctx, in, from); err != nil {
			return nil, err
		}
		for i := range in.Inputs {
			inp := &in.Inputs[i]
			amount, err := validation.ParsePositiveAmount(fmt.Sprintf("inputs[%d].amount", i), inp.Amount)
			if err != nil {
				return nil, err
			}
			proof = append(proof, &types.Transfer{Token: inp.Asset, From: from, Amount: amount})
		}
	}

	vault, err := s.cfg.Chain.NextVaultID(ctx)
	if err != nil {
		return nil, types.ErrInternal(err, "could not read next vault id")
	}
	txHash, err := s.cfg.Chain.CreateVault(ctx, common.HexToAddress(controller))
	if err != nil {
		return nil, types.ErrInternal(err, "could not submit vault creation")
	}
	if err := s.cfg.Store.CreateVault(ctx, vault, controller); err != nil {
		return nil, types.ErrInternal(err, "could not record vault")
	}
	for _, t := range proof {
		v := vault
		t.ToVault = &v
	}
	vaultsCreatedCount.Inc()
	log.WithFields(logrus.Fields{
		"vault":      vault,
		"controller": controller,
		"txHash":     txHash.Hex(),
		"seeded":     len(proof) > 0,
	}).Info("Created vault")
	return &types.ExecutionObject{Intention: sub.Intention, From: vault, Proof: proof, Signature: sig}, nil
}

// assignDeposit bypasses balance admission: inputs draw on the signer's
// open deposits instead. Destination vaults must already exist on chain.
// The planned draws ride in the proof so the bundle commit re-checks and
// applies them under row locks.
func (s *Service) assignDeposit(ctx context.Context, sub *Submission, in *types.Intention, controller, sig string) (*types.ExecutionObject, error) {
	if err := checkExpiry(in); err != nil {
		return nil, err
	}
	if err := validation.ValidateAssignDepositShape(in); err != nil {
		return nil, err
	}
	horizon, err := s.cfg.Chain.NextVaultID(ctx)
	if err != nil {
		return nil, types.ErrInternal(err, "could not read next vault id")
	}

	// Draws planned for earlier outputs reduce what later outputs may take
	// from the same deposit.
	reserved := map[uint64]*types.Wei{}
	proof := make([]*types.Transfer, 0, len(in.Outputs))
	for i := range in.Outputs {
		o := &in.Outputs[i]
		if *o.To >= horizon {
			return nil, types.ErrValidation(fmt.Sprintf("outputs[%d].to", i),
				strconv.FormatUint(*o.To, 10), "vault does not exist on chain")
		}
		amount, err := validation.ParsePositiveAmount(fmt.Sprintf("outputs[%d].amount", i), o.Amount)
		if err != nil {
			return nil, err
		}
		open, err := s.cfg.Store.DepositsWithRemaining(ctx, controller, o.Asset, o.ChainID)
		if err != nil {
			return nil, types.ErrInternal(err, "could not list open deposits")
		}
		candidates := make([]iface.DepositBalance, 0, len(open))
		for _, c := range open {
			remaining := c.Remaining
			if r, ok := reserved[c.ID]; ok {
				remaining = remaining.Clone()
				remaining.Int().Sub(remaining.Int(), r.Int())
			}
			if remaining.Sign() > 0 {
				candidates = append(candidates, iface.DepositBalance{ID: c.ID, Remaining: remaining})
			}
		}
		plan, err := deposits.PlanAssignments(candidates, amount)
		if err != nil {
			return nil, err
		}
		for _, a := range plan {
			if r, ok := reserved[a.DepositID]; ok {
				r.Int().Add(r.Int(), a.Amount.Int())
			} else {
				reserved[a.DepositID] = a.Amount.Clone()
			}
			id := a.DepositID
			to := *o.To
			proof = append(proof, &types.Transfer{
				Token:     o.Asset,
				From:      to,
				ToVault:   &to,
				Amount:    a.Amount,
				DepositID: &id,
			})
		}
	}
	return &types.ExecutionObject{Intention: sub.Intention, From: *in.Outputs[0].To, Proof: proof, Signature: sig}, nil
}

// sourceVault resolves the single vault the inputs draw from: an explicit
// from when supplied, otherwise the signer's only vault.
func (s *Service) sourceVault(ctx context.Context, inputs []types.Input, controller string) (uint64, error) {
	var from *uint64
	for i := range inputs {
		v := inputs[i].From
		if v == nil {
			owned, err := s.cfg.Store.VaultsByController(ctx, controller)
			if err != nil {
				return 0, types.ErrInternal(err, "could not list controlled vaults")
			}
			switch len(owned) {
			case 0:
				return 0, types.ErrKind(types.KindNoVault,
					controller+" controls no vault and from was omitted")
			case 1:
				v = &owned[0]
			default:
				return 0, types.ErrKind(types.KindAmbiguousVault,
					fmt.Sprintf("%s controls %d vaults, from is required", controller, len(owned)))
			}
		}
		if from == nil {
			w := *v
			from = &w
		} else if *from != *v {
			return 0, types.ErrKind(types.KindMultiSourceUnsupported,
				fmt.Sprintf("inputs draw from vaults %d and %d", *from, *v))
		}
	}
	if from == nil {
		return 0, types.ErrValidation("inputs", "", "at least one input required")
	}
	return *from, nil
}

func (s *Service) authorize(ctx context.Context, vault uint64, controller string) error {
	controllers, err := s.cfg.Store.Controllers(ctx, vault)
	if errors.Is(err, iface.ErrNotFound) {
		return types.ErrKind(types.KindUnauthorized,
			fmt.Sprintf("vault %d does not exist", vault))
	}
	if err != nil {
		return types.ErrInternal(err, "could not read controllers")
	}
	for _, c := range controllers {
		if strings.EqualFold(c, controller) {
			return nil
		}
	}
	return types.ErrKind(types.KindUnauthorized,
		fmt.Sprintf("%s does not control vault %d", controller, vault))
}

func (s *Service) admit(ctx context.Context, in *types.Intention, from uint64) error {
	for i := range in.Inputs {
		inp := &in.Inputs[i]
		amount, err := validation.ParsePositiveAmount(fmt.Sprintf("inputs[%d].amount", i), inp.Amount)
		if err != nil {
			return err
		}
		balance, err := s.cfg.Store.Balance(ctx, from, inp.Asset)
		if err != nil {
			return types.ErrInternal(err, "could not read balance")
		}
		if balance.Cmp(amount) < 0 {
			return types.ErrKind(types.KindInsufficientBalance,
				fmt.Sprintf("vault %d holds %s of %s, needs %s", from, balance, inp.Asset, amount))
		}
	}
	return nil
}

// transferProof maps validated outputs onto the concrete transfers the
// bundle commit will apply.
func transferProof(outputs []types.Output, from uint64) ([]*types.Transfer, error) {
	proof := make([]*types.Transfer, 0, len(outputs))
	for i := range outputs {
		o := &outputs[i]
		amount, err := validation.ParsePositiveAmount(fmt.Sprintf("outputs[%d].amount", i), o.Amount)
		if err != nil {
			return nil, err
		}
		t := &types.Transfer{Token: o.Asset, From: from, Amount: amount, ToExternal: o.ToExternal}
		if o.To != nil {
			v := *o.To
			t.ToVault = &v
		}
		proof = append(proof, t)
	}
	return proof, nil
}

// checkExpiry rejects intentions whose expiry is at or before now.
func checkExpiry(in *types.Intention) error {
	if in.Expiry <= time.Now().Unix() {
		return types.ErrKind(types.KindIntentionExpired,
			fmt.Sprintf("expiry %d is not in the future", in.Expiry))
	}
	return nil
}
