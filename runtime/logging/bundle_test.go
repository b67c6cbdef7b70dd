package logging

import (
	"testing"

	"github.com/latticelabs/lattice/proposer/types"
	"github.com/stretchr/testify/assert"
)

func TestBundleEventFields(t *testing.T) {
	ev := &types.BundleEvent{
		Bundle: &types.Bundle{
			Executions: []*types.ExecutionObject{{}, {}},
			Nonce:      7,
		},
		Nonce: 7,
		CID:   "QmTestCid",
		Gzip:  make([]byte, 2048),
	}
	fields := BundleEventFields(ev)
	assert.Equal(t, uint64(7), fields["nonce"])
	assert.Equal(t, "QmTestCid", fields["cid"])
	assert.Equal(t, 2, fields["executions"])
	assert.Equal(t, "2.0 kB", fields["gzipSize"])
}

func TestBundleEventFieldsNilBundle(t *testing.T) {
	fields := BundleEventFields(&types.BundleEvent{Nonce: 1, CID: "QmX"})
	assert.Equal(t, 0, fields["executions"])
}
