// Package resilience guards every state-fabric call with the policy
// spec.md §7.1 actually asks for: one retry after a fixed pause, and a
// breaker that trips permanently once the fabric has failed too many times
// — because a tripped fabric guard means the run aborts, not that callers
// should keep probing for recovery the way a long-lived service client
// would. Grounded on the retry/circuit-breaker shape of
// `_examples/Dxlxz-Nexus-Lite/consumer/circuit_breaker.go`, collapsed from
// a generic N-attempt exponential-backoff client guard (closed/open/
// half-open, configurable multiplier and attempt count) into the single
// fixed policy this domain ever needs.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// ErrFabricUnavailable is returned once a guard trips or a retried call
// still fails — spec.md §7.1 treats both as fatal to the run.
var ErrFabricUnavailable = errors.New("resilience: fabric unavailable")

// FabricGuard wraps a single state-fabric dependency. Unlike a classic
// closed/open/half-open circuit breaker, it never recovers mid-run: once
// tripped it fails every subsequent call without invoking it, on the
// assumption that the caller is already unwinding the run (spec.md §7:
// "only fabric unavailability is fatal").
type FabricGuard struct {
	name        string
	maxFailures int32
	retryDelay  time.Duration

	failures int32 // atomic, consecutive across calls
	tripped  int32 // atomic bool
}

// NewFabricGuard builds a guard that trips after maxFailures consecutive
// failed attempts. Each Run makes up to two attempts (the call, then one
// retry after retryDelay) and every failed attempt counts, so a single
// failing Run adds two failures.
func NewFabricGuard(name string, maxFailures int32, retryDelay time.Duration) *FabricGuard {
	return &FabricGuard{name: name, maxFailures: maxFailures, retryDelay: retryDelay}
}

// FabricRetryConfig is the spec.md §7.1 policy: trip after 5 consecutive
// failures, one retry with a 5s pause.
func FabricRetryConfig(name string) *FabricGuard {
	return NewFabricGuard(name, 5, 5*time.Second)
}

// Tripped reports whether this guard has already failed past its
// threshold.
func (g *FabricGuard) Tripped() bool {
	return atomic.LoadInt32(&g.tripped) == 1
}

// FailureCount returns the current consecutive failure count.
func (g *FabricGuard) FailureCount() int32 {
	return atomic.LoadInt32(&g.failures)
}

func (g *FabricGuard) recordFailure() int32 {
	failures := atomic.AddInt32(&g.failures, 1)
	if failures >= g.maxFailures && atomic.CompareAndSwapInt32(&g.tripped, 0, 1) {
		log.Printf("[resilience:%s] tripped after %d consecutive failures", g.name, failures)
	}
	return failures
}

func (g *FabricGuard) recordSuccess() {
	atomic.StoreInt32(&g.failures, 0)
}

// Run executes fn, retrying exactly once after the configured delay on
// failure. A guard that is already tripped fails fast without calling fn.
func (g *FabricGuard) Run(ctx context.Context, fn func() error) error {
	if g.Tripped() {
		return fmt.Errorf("%w: %s: circuit tripped", ErrFabricUnavailable, g.name)
	}

	if err := fn(); err != nil {
		g.recordFailure()
	} else {
		g.recordSuccess()
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("resilience: %s: retry cancelled: %w", g.name, ctx.Err())
	case <-time.After(g.retryDelay):
	}

	if err := fn(); err != nil {
		g.recordFailure()
		return fmt.Errorf("%w: %s: %v", ErrFabricUnavailable, g.name, err)
	}
	g.recordSuccess()
	return nil
}
