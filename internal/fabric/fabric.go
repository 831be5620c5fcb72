// Package fabric implements the state fabric: the keyed store and pub/sub
// streams that mediate all inter-agent observation (spec.md §4.1, §6).
package fabric

import (
	"context"
	"strconv"
	"time"
)

// Store is the keyed-store contract every component reads and writes
// through. It is the only shared resource in the simulation (spec.md §5).
type Store interface {
	// HashSet writes a field map under key, replacing prior fields.
	HashSet(ctx context.Context, key string, fields map[string]float64) error
	// HashGet reads the field map under key. Returns ok=false if absent.
	HashGet(ctx context.Context, key string) (map[string]float64, bool, error)

	// StringSet writes a scalar under key.
	StringSet(ctx context.Context, key string, value string) error
	// StringGet reads the scalar under key. Returns ok=false if absent.
	StringGet(ctx context.Context, key string) (string, bool, error)

	// ListAppend appends value to the list under key.
	ListAppend(ctx context.Context, key string, value string) error
	// ListRange returns the full list under key, in insertion order.
	ListRange(ctx context.Context, key string) ([]string, error)
	// ListDrain returns the full list under key and atomically empties it
	// (spec.md §4.1: "destructive drain", at-most-once delivery).
	ListDrain(ctx context.Context, key string) ([]string, error)

	// IncrFloat atomically adds delta to the float at key and returns the
	// new total. Must be strictly serialized across concurrent callers
	// (spec.md I6, "sale serialization").
	IncrFloat(ctx context.Context, key string, delta float64) (float64, error)

	// Expire sets a TTL on key. A zero ttl clears any expiry.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Flush removes every key the fabric currently holds (spec.md §4.6,
	// run finalization; supplemented from original_source/flush_db.py).
	Flush(ctx context.Context) error
}

// Key builders centralize the key schema (spec.md §4.1), grounded on
// original_source/model/agents/redis_state.py's identical naming.
func BankStateKey(bankID string) string      { return "bank:" + bankID + ":state" }
func SystemKey(field string) string          { return "system:" + field }
func MarketLatestKey() string                { return "market:latest" }
func MarketDepthKey() string                 { return "market:depth" }
func MarginCallsKey(bankID string) string    { return "margin_calls:bank:" + bankID }
func StreamPublicKey(tick int) string        { return "stream:public:" + strconv.Itoa(tick) }
func StreamPrivateKey(agentID string) string { return "stream:private:" + agentID }
func IntentsQueueKey() string                { return "intents:queue" }
func SalesKey(tick int, asset string) string { return "sales:" + strconv.Itoa(tick) + ":" + asset }
