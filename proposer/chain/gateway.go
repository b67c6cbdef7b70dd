package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// proposeGasLimit backstops gas estimation when the provider refuses to
// estimate, which some providers do for not-yet-mined contract states.
const proposeGasLimit = 300_000

// Gateway is the node's narrow surface over the tracker contracts. Writes
// are EIP-155 signed with the proposer wallet and awaited to a receipt.
type Gateway struct {
	client        *ethclient.Client
	rpcClient     *rpc.Client
	wallet        *Wallet
	chainID       *big.Int
	bundleTracker common.Address
	vaultTracker  common.Address
	bundleABI     abi.ABI
	vaultABI      abi.ABI
	tokenABI      abi.ABI
	decimals      *cache.Cache
}

// NewGateway binds the tracker contracts over an established connection.
func NewGateway(client *ethclient.Client, rpcClient *rpc.Client, wallet *Wallet, chainID *big.Int, bundleTracker, vaultTracker common.Address) (*Gateway, error) {
	bundleParsed, err := abi.JSON(strings.NewReader(bundleTrackerABI))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse bundle tracker abi")
	}
	vaultParsed, err := abi.JSON(strings.NewReader(vaultTrackerABI))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse vault tracker abi")
	}
	tokenParsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse erc20 abi")
	}
	return &Gateway{
		client:        client,
		rpcClient:     rpcClient,
		wallet:        wallet,
		chainID:       chainID,
		bundleTracker: bundleTracker,
		vaultTracker:  vaultTracker,
		bundleABI:     bundleParsed,
		vaultABI:      vaultParsed,
		tokenABI:      tokenParsed,
		decimals:      cache.New(cache.NoExpiration, 0),
	}, nil
}

// ChainID returns the connected chain's id.
func (g *Gateway) ChainID() uint64 {
	return g.chainID.Uint64()
}

// VaultTracker returns the vault tracker contract address, the destination
// deposit discovery scans for.
func (g *Gateway) VaultTracker() common.Address {
	return g.vaultTracker
}

// BlockNumber returns the chain head, the upper bound of a discovery scan.
func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := g.client.BlockNumber(ctx)
	return n, errors.Wrap(err, "could not fetch block number")
}

// Propose anchors a content id on the bundle tracker and waits for the
// receipt.
func (g *Gateway) Propose(ctx context.Context, cid string) (common.Hash, error) {
	data, err := g.bundleABI.Pack("propose", cid)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "could not pack propose call")
	}
	return g.sendContractTx(ctx, g.bundleTracker, data)
}

// CreateVault registers a new vault for controller on the vault tracker
// and waits for the receipt.
func (g *Gateway) CreateVault(ctx context.Context, controller common.Address) (common.Hash, error) {
	data, err := g.vaultABI.Pack("createVault", controller)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "could not pack createVault call")
	}
	return g.sendContractTx(ctx, g.vaultTracker, data)
}

// NextVaultID reads the id the vault tracker will assign next. Vault ids
// strictly below it exist on chain.
func (g *Gateway) NextVaultID(ctx context.Context) (uint64, error) {
	data, err := g.vaultABI.Pack("nextVaultId")
	if err != nil {
		return 0, errors.Wrap(err, "could not pack nextVaultId call")
	}
	res, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.vaultTracker, Data: data}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "nextVaultId call failed")
	}
	out, err := g.vaultABI.Unpack("nextVaultId", res)
	if err != nil {
		return 0, errors.Wrap(err, "could not unpack nextVaultId")
	}
	next, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.New("unexpected nextVaultId return type")
	}
	return next.Uint64(), nil
}

// TokenDecimals returns a token's decimals, 18 for the zero address.
// Results are cached for the process lifetime.
func (g *Gateway) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	if token == (common.Address{}) {
		return 18, nil
	}
	key := strings.ToLower(token.Hex())
	if v, ok := g.decimals.Get(key); ok {
		return v.(uint8), nil
	}
	data, err := g.tokenABI.Pack("decimals")
	if err != nil {
		return 0, errors.Wrap(err, "could not pack decimals call")
	}
	res, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "decimals call failed for %s", key)
	}
	out, err := g.tokenABI.Unpack("decimals", res)
	if err != nil {
		return 0, errors.Wrap(err, "could not unpack decimals")
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, errors.New("unexpected decimals return type")
	}
	g.decimals.Set(key, decimals, cache.NoExpiration)
	return decimals, nil
}

func (g *Gateway) sendContractTx(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	from := g.wallet.Address()
	nonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "could not fetch account nonce")
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "could not fetch gas price")
	}
	gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		log.WithError(err).Debug("Gas estimation failed, using default limit")
		gasLimit = proposeGasLimit
	}
	tx := gethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := gethtypes.SignTx(tx, gethtypes.NewEIP155Signer(g.chainID), g.wallet.key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "could not sign transaction")
	}
	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(err, "could not send transaction")
	}
	receipt, err := bind.WaitMined(ctx, g.client, signed)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "error waiting for receipt")
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return common.Hash{}, errors.Errorf("transaction %s reverted", signed.Hash().Hex())
	}
	return signed.Hash(), nil
}
