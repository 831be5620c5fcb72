package fabric

import (
	"context"
	"fmt"
	"log"

	"github.com/paynet/interbank-ccp/internal/intent"
)

// Publish applies the smart-routing rules of spec.md §4.1 in order: always
// append to the analytics queue; broadcast public intents to the tick's
// public stream; route private intents to the resolved target, and mirror a
// sender-side copy when the target differs from the emitter.
func Publish(ctx context.Context, store Store, env intent.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("fabric: marshal intent %s: %w", env.IntentID, err)
	}
	wire := string(raw)

	if err := store.ListAppend(ctx, IntentsQueueKey(), wire); err != nil {
		return fmt.Errorf("fabric: append intents queue: %w", err)
	}

	if env.Visibility == intent.Public {
		key := StreamPublicKey(env.Tick)
		if err := store.ListAppend(ctx, key, wire); err != nil {
			return fmt.Errorf("fabric: append public stream: %w", err)
		}
		return store.Expire(ctx, key, publicStreamTTL)
	}

	target, ok := env.Target()
	if !ok {
		return fmt.Errorf("fabric: private intent %s has no resolvable target", env.IntentID)
	}
	if err := store.ListAppend(ctx, StreamPrivateKey(target), wire); err != nil {
		return fmt.Errorf("fabric: append private stream for %s: %w", target, err)
	}
	if target != env.AgentID {
		if err := store.ListAppend(ctx, StreamPrivateKey(env.AgentID), wire); err != nil {
			return fmt.Errorf("fabric: append sender record for %s: %w", env.AgentID, err)
		}
	}
	return nil
}

// PublishMarginCall delivers a CCP issue_margin_call intent to its dedicated
// inbox (spec.md §6 keyspace table: `margin_calls:bank:{i}`, written by the
// CCP, destructively drained by the owning bank) rather than through the
// general private-stream routing of Publish — margin calls are the one
// intent type with their own delivery channel.
func PublishMarginCall(ctx context.Context, store Store, env intent.Envelope, targetBankID string) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("fabric: marshal margin call %s: %w", env.IntentID, err)
	}
	if err := store.ListAppend(ctx, IntentsQueueKey(), string(raw)); err != nil {
		return fmt.Errorf("fabric: append intents queue: %w", err)
	}
	if err := store.ListAppend(ctx, MarginCallsKey(targetBankID), string(raw)); err != nil {
		return fmt.Errorf("fabric: append margin calls for %s: %w", targetBankID, err)
	}
	return nil
}

// DrainPrivate reads and clears an agent's private inbox (exactly-once
// delivery, spec.md invariant on margin-call/private streams).
func DrainPrivate(ctx context.Context, store Store, agentID string) ([]intent.Envelope, error) {
	raw, err := store.ListDrain(ctx, StreamPrivateKey(agentID))
	if err != nil {
		return nil, err
	}
	return decodeAll(raw)
}

// ReadPublic reads the immutable public stream for a tick without draining
// it (broadcast fan-out to every bank).
func ReadPublic(ctx context.Context, store Store, tick int) ([]intent.Envelope, error) {
	raw, err := store.ListRange(ctx, StreamPublicKey(tick))
	if err != nil {
		return nil, err
	}
	return decodeAll(raw)
}

// DrainMarginCalls reads and clears a bank's margin-call inbox.
func DrainMarginCalls(ctx context.Context, store Store, bankID string) ([]intent.Envelope, error) {
	raw, err := store.ListDrain(ctx, MarginCallsKey(bankID))
	if err != nil {
		return nil, err
	}
	return decodeAll(raw)
}

func decodeAll(raw []string) ([]intent.Envelope, error) {
	out := make([]intent.Envelope, 0, len(raw))
	for _, r := range raw {
		env, err := intent.Unmarshal([]byte(r))
		if err != nil {
			// Malformed intent (spec.md §7.2): log and skip, never abort the tick.
			log.Printf("[fabric] skipping malformed intent: %v", err)
			continue
		}
		out = append(out, env)
	}
	return out, nil
}
