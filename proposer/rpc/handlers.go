package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/intentions"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/latticelabs/lattice/proposer/validation"
	"github.com/latticelabs/lattice/runtime/version"
	"go.opencensus.io/trace"
)

// maxSubmissionBytes bounds a submission body. Intentions are small;
// anything larger is broken or hostile.
const maxSubmissionBytes = 1 << 20

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type balanceResponse struct {
	Vault   uint64     `json:"vault"`
	Token   string     `json:"token"`
	Balance *types.Wei `json:"balance"`
}

type nonceResponse struct {
	Vault uint64 `json:"vault"`
	Nonce uint64 `json:"nonce"`
}

type controllersResponse struct {
	Vault       uint64   `json:"vault"`
	Controllers []string `json:"controllers"`
}

type rulesResponse struct {
	Vault uint64 `json:"vault"`
	Rules string `json:"rules"`
}

type vaultsResponse struct {
	Controller string   `json:"controller"`
	Vaults     []uint64 `json:"vaults"`
}

type cidResponse struct {
	Nonce uint64 `json:"nonce"`
	CID   string `json:"cid"`
}

type contentResponse struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type depositResponse struct {
	*types.Deposit
	Remaining *types.Wei `json:"remaining"`
}

type openDepositResponse struct {
	DepositID uint64     `json:"deposit_id"`
	Remaining *types.Wei `json:"remaining"`
}

type openDepositsResponse struct {
	Depositor string                 `json:"depositor"`
	Token     string                 `json:"token"`
	ChainID   uint64                 `json:"chain_id"`
	Deposits  []*openDepositResponse `json:"deposits"`
}

type versionResponse struct {
	Version string `json:"version"`
}

func (s *Service) submitIntention(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.submitIntention")
	defer span.End()
	sub := &intentions.Submission{}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSubmissionBytes)).Decode(sub); err != nil {
		writeError(w, types.ErrValidation("body", "", "request body is not valid JSON"))
		return
	}
	exec, err := s.cfg.Submitter.Submit(ctx, sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, exec)
}

func (s *Service) listBundles(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.listBundles")
	defer span.End()
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, types.ErrValidation("limit", raw, "must be a positive integer"))
			return
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		limit = n
	}
	var before *uint64
	if raw := r.URL.Query().Get("before"); raw != "" {
		n, err := validation.ParseID("before", raw)
		if err != nil {
			writeError(w, err)
			return
		}
		before = &n
	}
	bundles, err := s.cfg.Store.Bundles(ctx, limit, before)
	if err != nil {
		writeError(w, err)
		return
	}
	if bundles == nil {
		bundles = []*types.StoredBundle{}
	}
	writeJSON(w, http.StatusOK, bundles)
}

func (s *Service) getBundle(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.getBundle")
	defer span.End()
	nonce, err := validation.ParseID("nonce", mux.Vars(r)["nonce"])
	if err != nil {
		writeError(w, err)
		return
	}
	bundle, err := s.cfg.Store.Bundle(ctx, nonce)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Service) getBundleCID(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.getBundleCID")
	defer span.End()
	nonce, err := validation.ParseID("nonce", mux.Vars(r)["nonce"])
	if err != nil {
		writeError(w, err)
		return
	}
	cid, err := s.cfg.Store.CID(ctx, nonce)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &cidResponse{Nonce: nonce, CID: cid})
}

func (s *Service) listBalances(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.listBalances")
	defer span.End()
	vault, err := validation.ParseID("vault", mux.Vars(r)["vault"])
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := s.cfg.Store.Balances(ctx, vault)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*balanceResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, &balanceResponse{Vault: vault, Token: rec.Token, Balance: rec.Amount})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) getBalance(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.getBalance")
	defer span.End()
	vault, err := validation.ParseID("vault", mux.Vars(r)["vault"])
	if err != nil {
		writeError(w, err)
		return
	}
	token := validation.NormalizeToken(mux.Vars(r)["token"])
	amount, err := s.cfg.Store.Balance(ctx, vault, token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &balanceResponse{Vault: vault, Token: token, Balance: amount})
}

func (s *Service) getVaultNonce(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.getVaultNonce")
	defer span.End()
	vault, err := validation.ParseID("vault", mux.Vars(r)["vault"])
	if err != nil {
		writeError(w, err)
		return
	}
	nonce, err := s.cfg.Store.VaultNonce(ctx, vault)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &nonceResponse{Vault: vault, Nonce: nonce})
}

func (s *Service) getControllers(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.getControllers")
	defer span.End()
	vault, err := validation.ParseID("vault", mux.Vars(r)["vault"])
	if err != nil {
		writeError(w, err)
		return
	}
	controllers, err := s.cfg.Store.Controllers(ctx, vault)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &controllersResponse{Vault: vault, Controllers: controllers})
}

func (s *Service) getVaultRules(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.getVaultRules")
	defer span.End()
	vault, err := validation.ParseID("vault", mux.Vars(r)["vault"])
	if err != nil {
		writeError(w, err)
		return
	}
	rules, err := s.cfg.Store.VaultRules(ctx, vault)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &rulesResponse{Vault: vault, Rules: rules})
}

func (s *Service) listControllerVaults(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.listControllerVaults")
	defer span.End()
	controller, err := validation.ValidateAddress("address", mux.Vars(r)["address"])
	if err != nil {
		writeError(w, err)
		return
	}
	vaults, err := s.cfg.Store.VaultsByController(ctx, controller)
	if err != nil {
		writeError(w, err)
		return
	}
	if vaults == nil {
		vaults = []uint64{}
	}
	writeJSON(w, http.StatusOK, &vaultsResponse{Controller: controller, Vaults: vaults})
}

func (s *Service) getDeposit(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.getDeposit")
	defer span.End()
	id, err := validation.ParseID("id", mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	dep, err := s.cfg.Store.Deposit(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	remaining, err := s.cfg.Store.DepositRemaining(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &depositResponse{Deposit: dep, Remaining: remaining})
}

// depositQuery reads the depositor path variable and the token and chain
// query parameters shared by the deposit lookups.
func depositQuery(r *http.Request) (string, string, uint64, error) {
	depositor, err := validation.ValidateAddress("address", mux.Vars(r)["address"])
	if err != nil {
		return "", "", 0, err
	}
	token := validation.NormalizeToken(r.URL.Query().Get("token"))
	if token == "" {
		return "", "", 0, types.ErrValidation("token", "", "query parameter is required")
	}
	chainID, err := validation.ParseID("chain", r.URL.Query().Get("chain"))
	if err != nil {
		return "", "", 0, err
	}
	return depositor, token, chainID, nil
}

func (s *Service) listOpenDeposits(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.listOpenDeposits")
	defer span.End()
	depositor, token, chainID, err := depositQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := s.cfg.Store.DepositsWithRemaining(ctx, depositor, token, chainID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*openDepositResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, &openDepositResponse{DepositID: rec.ID, Remaining: rec.Remaining})
	}
	writeJSON(w, http.StatusOK, &openDepositsResponse{Depositor: depositor, Token: token, ChainID: chainID, Deposits: out})
}

// getNextDeposit reports the deposit an assignment would draw from first:
// the oldest open deposit, or with min the oldest whose remainder covers it.
func (s *Service) getNextDeposit(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.getNextDeposit")
	defer span.End()
	depositor, token, chainID, err := depositQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var min *types.Wei
	if raw := r.URL.Query().Get("min"); raw != "" {
		m, err := validation.ParsePositiveAmount("min", raw)
		if err != nil {
			writeError(w, err)
			return
		}
		min = m
	}
	var bal *iface.DepositBalance
	if min != nil {
		bal, err = s.cfg.Store.DepositWithSufficientRemaining(ctx, depositor, token, chainID, min)
	} else {
		bal, err = s.cfg.Store.NextDepositWithRemaining(ctx, depositor, token, chainID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &openDepositResponse{DepositID: bal.ID, Remaining: bal.Remaining})
}

func (s *Service) getContentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "rpc.getContentStatus")
	defer span.End()
	stat, err := s.cfg.Content.Stat(ctx, mux.Vars(r)["cid"])
	if err != nil {
		writeError(w, types.ErrInternal(err, "content store lookup failed"))
		return
	}
	writeJSON(w, http.StatusOK, &contentResponse{CID: stat.Key, Size: stat.Size})
}

func (s *Service) getVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, &versionResponse{Version: version.Version()})
}
