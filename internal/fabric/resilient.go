package fabric

import (
	"context"
	"time"

	"github.com/paynet/interbank-ccp/internal/resilience"
)

// ResilientStore wraps a Store with the spec.md §7.1 fabric-unavailable
// policy: retry a failed call once after a fixed 5s pause, behind a circuit
// breaker, then propagate the error — the caller (the scheduler) treats that
// as fatal and aborts the run, per "only fabric unavailability is fatal". No
// timeout is placed on the individual calls themselves.
type ResilientStore struct {
	inner Store
	guard *resilience.FabricGuard
}

// NewResilientStore wraps inner with the standard fabric retry policy.
func NewResilientStore(inner Store) *ResilientStore {
	return &ResilientStore{inner: inner, guard: resilience.FabricRetryConfig("state-fabric")}
}

func (r *ResilientStore) call(ctx context.Context, fn func() error) error {
	return r.guard.Run(ctx, fn)
}

func (r *ResilientStore) HashSet(ctx context.Context, key string, fields map[string]float64) error {
	return r.call(ctx, func() error { return r.inner.HashSet(ctx, key, fields) })
}

func (r *ResilientStore) HashGet(ctx context.Context, key string) (map[string]float64, bool, error) {
	var fields map[string]float64
	var ok bool
	err := r.call(ctx, func() error {
		var innerErr error
		fields, ok, innerErr = r.inner.HashGet(ctx, key)
		return innerErr
	})
	return fields, ok, err
}

func (r *ResilientStore) StringSet(ctx context.Context, key, value string) error {
	return r.call(ctx, func() error { return r.inner.StringSet(ctx, key, value) })
}

func (r *ResilientStore) StringGet(ctx context.Context, key string) (string, bool, error) {
	var value string
	var ok bool
	err := r.call(ctx, func() error {
		var innerErr error
		value, ok, innerErr = r.inner.StringGet(ctx, key)
		return innerErr
	})
	return value, ok, err
}

func (r *ResilientStore) ListAppend(ctx context.Context, key, value string) error {
	return r.call(ctx, func() error { return r.inner.ListAppend(ctx, key, value) })
}

func (r *ResilientStore) ListRange(ctx context.Context, key string) ([]string, error) {
	var out []string
	err := r.call(ctx, func() error {
		var innerErr error
		out, innerErr = r.inner.ListRange(ctx, key)
		return innerErr
	})
	return out, err
}

func (r *ResilientStore) ListDrain(ctx context.Context, key string) ([]string, error) {
	var out []string
	err := r.call(ctx, func() error {
		var innerErr error
		out, innerErr = r.inner.ListDrain(ctx, key)
		return innerErr
	})
	return out, err
}

func (r *ResilientStore) IncrFloat(ctx context.Context, key string, delta float64) (float64, error) {
	var total float64
	err := r.call(ctx, func() error {
		var innerErr error
		total, innerErr = r.inner.IncrFloat(ctx, key, delta)
		return innerErr
	})
	return total, err
}

func (r *ResilientStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.call(ctx, func() error { return r.inner.Expire(ctx, key, ttl) })
}

func (r *ResilientStore) Flush(ctx context.Context) error {
	return r.call(ctx, func() error { return r.inner.Flush(ctx) })
}
