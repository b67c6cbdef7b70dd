package async_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/latticelabs/lattice/async"
)

func TestRunEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	i := int32(0)
	async.RunEvery(ctx, 20*time.Millisecond, func() {
		atomic.AddInt32(&i, 1)
	})

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&i) == 0 {
		t.Error("Counter failed to increment with ticker")
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	last := atomic.LoadInt32(&i)
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&i) != last {
		t.Error("Counter incremented after cancel")
	}
}

func TestRunEveryNowRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	i := int32(0)
	async.RunEveryNow(ctx, time.Hour, func() {
		atomic.AddInt32(&i, 1)
	})

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&i) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&i) != 1 {
		t.Errorf("Expected exactly one immediate run, got %d", atomic.LoadInt32(&i))
	}
}
