package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeiFromDecimal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string // raw wei
		wantErr bool
	}{
		{name: "integer units", in: "100", want: "100000000000000000000"},
		{name: "zero", in: "0", want: "0"},
		{name: "fraction", in: "1.5", want: "1500000000000000000"},
		{name: "full precision", in: "0.000000000000000001", want: "1"},
		{name: "trailing dot digits", in: "2.10", want: "2100000000000000000"},
		{name: "too many decimals", in: "1.0000000000000000001", wantErr: true},
		{name: "negative", in: "-1", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "not a number", in: "12a", wantErr: true},
		{name: "bare dot", in: ".5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WeiFromDecimal(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestWeiDecimalRoundTrip(t *testing.T) {
	for _, in := range []string{"0", "1", "100", "1.5", "0.000000000000000001", "123456.000000000000000123"} {
		w, err := WeiFromDecimal(in)
		require.NoError(t, err)
		assert.Equal(t, in, w.Decimal(), "round trip of %s", in)
	}
}

func TestWeiDecimalTrimsTrailingZeros(t *testing.T) {
	w, err := WeiFromDecimal("2.500")
	require.NoError(t, err)
	assert.Equal(t, "2.5", w.Decimal())
}

func TestWeiJSON(t *testing.T) {
	w := NewWei(big.NewInt(12345))
	b, err := json.Marshal(w)
	require.NoError(t, err)
	assert.Equal(t, `"12345"`, string(b))

	var back Wei
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 0, back.Cmp(w))

	var bare Wei
	require.NoError(t, json.Unmarshal([]byte(`67890`), &bare))
	assert.Equal(t, "67890", bare.String())

	assert.Error(t, json.Unmarshal([]byte(`"12x"`), &back))
}

func TestWeiClone(t *testing.T) {
	w := WeiFromUint64(42)
	c := w.Clone()
	c.Int().SetUint64(7)
	assert.Equal(t, "42", w.String())
	assert.Equal(t, "7", c.String())
}
