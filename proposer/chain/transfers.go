package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
)

// Transfer is one provider-observed asset movement, normalized to the
// node's wei scale regardless of token decimals.
type Transfer struct {
	UID     string
	TxHash  string
	From    string
	To      string
	Token   string
	Amount  *types.Wei
	ChainID uint64
}

// TransferQuery selects asset transfers by destination. Block bounds are
// hex quantities or the provider tags ("latest"); empty means unbounded.
type TransferQuery struct {
	To         string
	Categories []string
	Contracts  []string
	FromBlock  string
	ToBlock    string
}

type assetTransfersParams struct {
	FromBlock         string   `json:"fromBlock,omitempty"`
	ToBlock           string   `json:"toBlock,omitempty"`
	ToAddress         string   `json:"toAddress,omitempty"`
	Category          []string `json:"category"`
	ContractAddresses []string `json:"contractAddresses,omitempty"`
	MaxCount          string   `json:"maxCount,omitempty"`
	PageKey           string   `json:"pageKey,omitempty"`
}

type assetTransfersPage struct {
	Transfers []rawTransfer `json:"transfers"`
	PageKey   string        `json:"pageKey"`
}

type rawTransfer struct {
	UniqueID    string `json:"uniqueId"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	RawContract struct {
		Value   string  `json:"value"`
		Address *string `json:"address"`
		Decimal string  `json:"decimal"`
	} `json:"rawContract"`
}

// transfersPageSize is the provider maximum for one page.
const transfersPageSize = "0x3e8"

// ListTransfers queries the provider's alchemy_getAssetTransfers endpoint,
// following pageKey pagination until the result set is exhausted. Raw
// values are scaled by 10^(18-decimals) so callers never see token-native
// precision.
func (g *Gateway) ListTransfers(ctx context.Context, q TransferQuery) ([]*Transfer, error) {
	params := assetTransfersParams{
		FromBlock:         q.FromBlock,
		ToBlock:           q.ToBlock,
		ToAddress:         q.To,
		Category:          q.Categories,
		ContractAddresses: q.Contracts,
		MaxCount:          transfersPageSize,
	}
	var out []*Transfer
	for {
		var page assetTransfersPage
		if err := g.rpcClient.CallContext(ctx, &page, "alchemy_getAssetTransfers", params); err != nil {
			return nil, errors.Wrap(err, "asset transfer query failed")
		}
		for _, raw := range page.Transfers {
			t, err := g.normalizeTransfer(ctx, raw)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		if page.PageKey == "" {
			return out, nil
		}
		params.PageKey = page.PageKey
	}
}

func (g *Gateway) normalizeTransfer(ctx context.Context, raw rawTransfer) (*Transfer, error) {
	value, err := hexutil.DecodeBig(raw.RawContract.Value)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed transfer value %q", raw.RawContract.Value)
	}
	token := "0x0000000000000000000000000000000000000000"
	decimals := uint8(18)
	if raw.RawContract.Address != nil && *raw.RawContract.Address != "" {
		token = strings.ToLower(*raw.RawContract.Address)
		if raw.RawContract.Decimal != "" {
			d, err := hexutil.DecodeUint64(raw.RawContract.Decimal)
			if err != nil {
				return nil, errors.Wrapf(err, "malformed decimals %q", raw.RawContract.Decimal)
			}
			decimals = uint8(d)
		} else {
			d, err := g.TokenDecimals(ctx, common.HexToAddress(token))
			if err != nil {
				return nil, err
			}
			decimals = d
		}
	}
	return &Transfer{
		UID:     raw.UniqueID,
		TxHash:  raw.Hash,
		From:    strings.ToLower(raw.From),
		To:      strings.ToLower(raw.To),
		Token:   token,
		Amount:  scaleToWei(value, decimals),
		ChainID: g.ChainID(),
	}, nil
}

// scaleToWei converts a token-native integer to the 18-decimal scale.
func scaleToWei(value *big.Int, decimals uint8) *types.Wei {
	if decimals >= 18 {
		// Tokens with more than 18 decimals lose the excess precision.
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-18)), nil)
		return types.NewWei(new(big.Int).Quo(value, div))
	}
	mul := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil)
	return types.NewWei(new(big.Int).Mul(value, mul))
}
