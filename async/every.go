// Package async contains helpers for scheduling periodic work on
// goroutines owned by the caller's context.
package async

import (
	"context"
	"time"
)

// RunEvery calls f every period on a dedicated goroutine until ctx is
// done. The first call happens one period after scheduling.
func RunEvery(ctx context.Context, period time.Duration, f func()) {
	go tickLoop(ctx, period, f)
}

// RunEveryNow is RunEvery with an extra call to f immediately, for work
// that should not wait a full period after startup.
func RunEveryNow(ctx context.Context, period time.Duration, f func()) {
	go func() {
		f()
		tickLoop(ctx, period, f)
	}()
}

func tickLoop(ctx context.Context, period time.Duration, f func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f()
		case <-ctx.Done():
			return
		}
	}
}
