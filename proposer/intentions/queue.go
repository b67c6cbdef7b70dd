package intentions

import (
	"fmt"
	"sync"

	"github.com/latticelabs/lattice/proposer/types"
)

// Queue is the FIFO of accepted executions awaiting the next bundle tick.
// The handler appends, the bundler drains; both sides share one mutex. A
// zero cap means unbounded.
type Queue struct {
	mu    sync.Mutex
	items []*types.ExecutionObject
	cap   int
}

// NewQueue returns an empty queue bounded at cap entries.
func NewQueue(cap int) *Queue {
	return &Queue{cap: cap}
}

// Push appends an execution in submission order. When the queue is at
// capacity the execution is refused and the submitter must retry after a
// tick drains the backlog.
func (q *Queue) Push(exec *types.ExecutionObject) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cap > 0 && len(q.items) >= q.cap {
		return types.ErrKind(types.KindQueueFull,
			fmt.Sprintf("pending queue at capacity %d", q.cap))
	}
	q.items = append(q.items, exec)
	pendingQueueLength.Set(float64(len(q.items)))
	return nil
}

// Drain snapshots the queue contents in order and resets it to empty in
// one critical section, so submissions arriving mid-tick land in the next
// bundle rather than a half-drained one.
func (q *Queue) Drain() []*types.ExecutionObject {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	pendingQueueLength.Set(0)
	return items
}

// Len reports the number of pending executions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
