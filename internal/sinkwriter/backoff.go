package sinkwriter

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryGate gates re-entry into the write loop after a recoverable
// failure, per spec.md §5/§7: "re-entry before now − failureTime ≥
// timeoutMs is a no-op." retry.backoff.ms is a fixed delay, not an
// exponential one, so this wraps backoff.ConstantBackOff rather than the
// package's default exponential policy.
type retryGate struct {
	policy      backoff.BackOff
	failureTime int64
	interval    time.Duration
}

func newRetryGate(retryBackoffMs int64) *retryGate {
	return &retryGate{
		policy:      backoff.NewConstantBackOff(time.Duration(retryBackoffMs) * time.Millisecond),
		failureTime: -1,
	}
}

// fail records a failure at now (epoch millis) and captures the delay
// before the next retry is permitted.
func (g *retryGate) fail(now int64) {
	g.failureTime = now
	g.interval = g.policy.NextBackOff()
}

// ready reports whether enough time has passed since the last recorded
// failure (or whether there was no failure at all).
func (g *retryGate) ready(now int64) bool {
	if g.failureTime < 0 {
		return true
	}
	return time.Duration(now-g.failureTime)*time.Millisecond >= g.interval
}

// reset clears the failure marker, e.g. once the writer has made forward
// progress again.
func (g *retryGate) reset() {
	g.failureTime = -1
	g.policy.Reset()
}
