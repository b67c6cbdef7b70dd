package intentions

import (
	"testing"

	"github.com/latticelabs/lattice/proposer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDrainPreservesOrder(t *testing.T) {
	q := NewQueue(0)
	for i := uint64(0); i < 5; i++ {
		require.NoError(t, q.Push(&types.ExecutionObject{From: i}))
	}
	assert.Equal(t, 5, q.Len())

	drained := q.Drain()
	require.Len(t, drained, 5)
	for i, exec := range drained {
		assert.Equal(t, uint64(i), exec.From)
	}
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

func TestQueueCap(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Push(&types.ExecutionObject{}))
	require.NoError(t, q.Push(&types.ExecutionObject{}))

	err := q.Push(&types.ExecutionObject{})
	require.Error(t, err)
	assert.Equal(t, types.KindQueueFull, types.KindOf(err))

	// Draining frees capacity again.
	q.Drain()
	require.NoError(t, q.Push(&types.ExecutionObject{}))
}
