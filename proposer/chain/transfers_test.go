package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleToWei(t *testing.T) {
	tests := []struct {
		value    int64
		decimals uint8
		want     string
	}{
		{value: 1, decimals: 18, want: "1"},
		{value: 5, decimals: 6, want: "5000000000000"},
		{value: 100, decimals: 0, want: "100000000000000000000"},
		{value: 1500, decimals: 21, want: "1"},
	}
	for _, tt := range tests {
		got := scaleToWei(big.NewInt(tt.value), tt.decimals)
		assert.Equal(t, tt.want, got.String(), "value %d decimals %d", tt.value, tt.decimals)
	}
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://node.example/v2/KEY", Endpoint("https://node.example/v2/", "KEY"))
	assert.Equal(t, "https://node.example/v2", Endpoint("https://node.example/v2", ""))
}

// rpcEnvelope is the minimal JSON-RPC request shape the stub needs.
type rpcEnvelope struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func TestListTransfersPagination(t *testing.T) {
	pages := []string{
		`{"transfers":[
			{"uniqueId":"uid-1","hash":"0xh1","from":"0xDEP","to":"0xTRACKER",
			 "rawContract":{"value":"0x64","address":null,"decimal":"0x12"}}
		],"pageKey":"next-page"}`,
		`{"transfers":[
			{"uniqueId":"uid-2","hash":"0xh2","from":"0xDEP","to":"0xTRACKER",
			 "rawContract":{"value":"0x5","address":"0xT000000000000000000000000000000000000001","decimal":"0x6"}}
		],"pageKey":""}`,
	}
	var gotPageKeys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env rpcEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		require.Equal(t, "alchemy_getAssetTransfers", env.Method)
		require.Len(t, env.Params, 1)
		var params assetTransfersParams
		require.NoError(t, json.Unmarshal(env.Params[0], &params))
		gotPageKeys = append(gotPageKeys, params.PageKey)

		page := pages[0]
		if params.PageKey != "" {
			page = pages[1]
		}
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(env.ID) + `,"result":` + page + `}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	rpcClient, err := rpc.DialContext(context.Background(), srv.URL)
	require.NoError(t, err)
	defer rpcClient.Close()
	g := &Gateway{rpcClient: rpcClient, chainID: big.NewInt(11155111)}

	transfers, err := g.ListTransfers(context.Background(), TransferQuery{
		To:         "0xtracker",
		Categories: []string{"external", "erc20"},
	})
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, []string{"", "next-page"}, gotPageKeys)

	// Native transfer: 0x64 = 100 base units at 18 decimals.
	assert.Equal(t, "uid-1", transfers[0].UID)
	assert.Equal(t, "0x0000000000000000000000000000000000000000", transfers[0].Token)
	assert.Equal(t, "100", transfers[0].Amount.String())
	assert.Equal(t, uint64(11155111), transfers[0].ChainID)

	// Token transfer: 5 units at 6 decimals scale up by 1e12.
	assert.Equal(t, "0xt000000000000000000000000000000000000001", transfers[1].Token)
	assert.Equal(t, "5000000000000", transfers[1].Amount.String())
	assert.Equal(t, "0xdep", transfers[1].From)
}
