package sql

import (
	"strings"
	"testing"

	"github.com/latticelabs/lattice/proposer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanWei(t *testing.T) {
	// NUMERIC(78,18)::text renders the full 18-digit fraction.
	w, err := scanWei("100.000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "100"+strings.Repeat("0", 18), w.String())

	w, err = scanWei("0.000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "1", w.String())

	_, err = scanWei("not-a-number")
	require.Error(t, err)
}

func TestScanWeiRoundTripsDecimal(t *testing.T) {
	for _, s := range []string{"0", "1", "1.5", "123456789.000000000000000001"} {
		w, err := types.WeiFromDecimal(s)
		require.NoError(t, err)
		back, err := scanWei(w.Decimal())
		require.NoError(t, err)
		assert.Equal(t, 0, back.Cmp(w), "round trip of %s", s)
	}
}

func TestMigrationsAreAppendOnly(t *testing.T) {
	// Migration indexes are persisted, so the list may only grow.
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.True(t, strings.HasPrefix(strings.TrimSpace(m), "CREATE"), "migration %d", i)
	}
}
