package crawl

import (
	"context"
	"math/rand/v2"
	"time"
)

// TickFunc performs one unit of strategy work and returns the delay before
// the next tick.
type TickFunc func(ctx context.Context) time.Duration

// Loop runs fn as a self-rescheduling periodic task: sleep initial, tick,
// sleep the returned delay, tick again, until the context finishes. Every
// strategy runs in its own Loop; there is no central coordination beyond the
// shared state they read.
func Loop(ctx context.Context, initial time.Duration, fn TickFunc) {
	delay := initial
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		delay = fn(ctx)
		if delay <= 0 {
			delay = time.Millisecond
		}
		timer.Reset(delay)
	}
}

// Jitter spreads a base delay over [base/2, 3*base/2) to keep independently
// scheduled strategies from bursting in sync.
func Jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return base/2 + rand.N(base)
}

// RandomPriority picks a priority uniformly within the low-priority probe band.
func RandomPriority() int {
	return PriorityProbeMin + rand.IntN(PriorityProbeMax-PriorityProbeMin+1)
}
